package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibli/story-service/internal/domain"
)

func packEvent(userID uuid.UUID, transactionID string) domain.PurchaseEvent {
	return domain.PurchaseEvent{
		UserID: userID,
		Record: domain.PurchaseRecord{
			ProductID:     domain.ProductTwentyUsesPack,
			TransactionID: transactionID,
			TransactedAt:  time.Now(),
		},
	}
}

func subscriptionEvent(userID uuid.UUID, transactionID string, transactedAt time.Time) domain.PurchaseEvent {
	return domain.PurchaseEvent{
		UserID: userID,
		Record: domain.PurchaseRecord{
			ProductID:     domain.ProductMonthlySubscription,
			TransactionID: transactionID,
			TransactedAt:  transactedAt,
		},
	}
}

func TestQueryStateFreshUser(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()

	state, err := ledger.QueryState(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, state.FreeRemaining)
	assert.Equal(t, 0, state.PurchasedRemaining)
	assert.False(t, state.IsSubscribed)
	assert.True(t, state.CanGenerate())
}

func TestConsumeExhaustsFreeQuota(t *testing.T) {
	ledger, _, _, _, producer := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, ledger.ConsumeOneGeneration(ctx, userID))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.FreeRemaining)
	assert.False(t, state.CanGenerate())

	err = ledger.ConsumeOneGeneration(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrNoAllowanceRemaining)

	// списано ровно одно событие
	require.Len(t, producer.events, 1)
	assert.Equal(t, domain.EntitlementEventConsumed, producer.events[0].Type)
}

func TestConsumePurchasedBeforeFree(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, ledger.ReconcilePurchase(ctx, packEvent(userID, "txn-pack")))

	require.NoError(t, ledger.ConsumeOneGeneration(ctx, userID))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 19, state.PurchasedRemaining)
	assert.Equal(t, 1, state.FreeRemaining, "free quota stays untouched while purchased units remain")
}

func TestConsumeWithSubscriptionIsNoop(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	event := subscriptionEvent(userID, "txn-sub", time.Now().Add(-24*time.Hour))
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.ConsumeOneGeneration(ctx, userID))
	}

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.True(t, state.IsSubscribed)
	assert.Equal(t, 1, state.FreeRemaining)
	assert.Equal(t, 0, state.PurchasedRemaining)
}

func TestExpiredSubscriptionFallsBackToCounters(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	event := subscriptionEvent(userID, "txn-sub", time.Now().Add(-40*24*time.Hour))
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.False(t, state.IsSubscribed)
	assert.Nil(t, state.SubscriptionExpiresAt)
	assert.Equal(t, 1, state.FreeRemaining)
}

func TestReconcilePackCreditsAndFinalizes(t *testing.T) {
	ledger, _, repo, platform, producer := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, ledger.ReconcilePurchase(ctx, packEvent(userID, "txn-1")))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.PurchasedRemaining)

	applied, err := repo.IsApplied(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, platform.finalizedCount("txn-1"))

	require.Len(t, producer.events, 1)
	assert.Equal(t, domain.EntitlementEventReconciled, producer.events[0].Type)
	assert.Equal(t, "txn-1", producer.events[0].TransactionID)
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	event := packEvent(userID, "txn-1")
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.PurchasedRemaining, "replayed delivery must not credit twice")

	// каждая доставка финализируется заново, чтобы платформа перестала её слать
	assert.Equal(t, 3, platform.finalizedCount("txn-1"))
}

func TestReconcileUnknownProductFinalizedWithoutCredit(t *testing.T) {
	ledger, _, repo, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	err := ledger.ReconcilePurchase(ctx, domain.PurchaseEvent{
		UserID: userID,
		Record: domain.PurchaseRecord{
			ProductID:     "com.fibli.iap.unknown",
			TransactionID: "txn-x",
			TransactedAt:  time.Now(),
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsBusinessError(err))

	// финализируется, чтобы не висеть в очереди pending вечно
	assert.Equal(t, 1, platform.finalizedCount("txn-x"))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.PurchasedRemaining)
	assert.Empty(t, repo.records[userID])
}

func TestReconcileStorageFailureLeavesUnfinalized(t *testing.T) {
	ledger, counters, _, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	counters.failing = true

	err := ledger.ReconcilePurchase(ctx, packEvent(userID, "txn-1"))
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 0, platform.finalizedCount("txn-1"), "unfinalized transaction will be redelivered")

	// после восстановления хранилища передоставка проходит и кредитует один раз
	counters.failing = false
	require.NoError(t, ledger.ReconcilePurchase(ctx, packEvent(userID, "txn-1")))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.PurchasedRemaining)
	assert.Equal(t, 1, platform.finalizedCount("txn-1"))
}

func TestReconcileMarkAppliedFailureNoDoubleCredit(t *testing.T) {
	ledger, _, repo, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	// пометка applied падает: транзакция БД откатывается целиком,
	// кредит не начисляется
	repo.failMarkApplied = 1

	event := packEvent(userID, "txn-1")
	err := ledger.ReconcilePurchase(ctx, event)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 0, platform.finalizedCount("txn-1"))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.PurchasedRemaining, "rolled back delivery must not leave a credit behind")
	assert.Empty(t, repo.records[userID])

	// передоставка кредитует ровно один пакет
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))

	state, err = ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackUnits, state.PurchasedRemaining, "redelivery must credit exactly once")
	assert.Len(t, repo.records[userID], 1)
	assert.Equal(t, 1, platform.finalizedCount("txn-1"))
}

func TestReconcileCreditFailureAfterApplyRecovers(t *testing.T) {
	ledger, counters, repo, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	// сбой после фиксации транзакции БД, но до записи баланса
	counters.failSetMulti = true

	event := packEvent(userID, "txn-1")
	err := ledger.ReconcilePurchase(ctx, event)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 0, platform.finalizedCount("txn-1"))

	applied, err := repo.IsApplied(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, applied)

	// передоставка доначисляет потерянный кредит, но не дублирует его
	counters.failSetMulti = false
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))
	require.NoError(t, ledger.ReconcilePurchase(ctx, event))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackUnits, state.PurchasedRemaining)
	assert.Equal(t, 2, platform.finalizedCount("txn-1"))
}

func TestConcurrentConsumeNoDoubleSpend(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, ledger.ReconcilePurchase(ctx, packEvent(userID, "txn-1")))

	const workers = 25
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- ledger.ConsumeOneGeneration(ctx, userID)
		}()
	}
	wg.Wait()
	close(errCh)

	var succeeded, denied int
	for err := range errCh {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, domain.ErrNoAllowanceRemaining)
			denied++
		}
	}

	// 20 купленных + 1 бесплатная, остальные отклонены
	assert.Equal(t, 21, succeeded)
	assert.Equal(t, workers-21, denied)

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.PurchasedRemaining)
	assert.Equal(t, 0, state.FreeRemaining)
}

func TestUserLocksEvictedWhenIdle(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		userID := uuid.New()
		_, err := ledger.QueryState(ctx, userID)
		require.NoError(t, err)
		_ = ledger.ConsumeOneGeneration(ctx, userID)
	}

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	assert.Empty(t, ledger.locks, "idle user locks must not accumulate")
}

func TestRequestPurchaseDispatch(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, ledger.RequestPurchase(ctx, userID, domain.ProductMonthlySubscription))
	require.NoError(t, ledger.RequestPurchase(ctx, userID, domain.ProductTwentyUsesPack))

	assert.Equal(t, []domain.ProductID{domain.ProductMonthlySubscription}, platform.subscriptionRequests)
	assert.Equal(t, []domain.ProductID{domain.ProductTwentyUsesPack}, platform.oneTimeRequests)
}

func TestRequestPurchaseUnknownProduct(t *testing.T) {
	ledger, _, _, _, _ := newTestLedger()

	err := ledger.RequestPurchase(context.Background(), uuid.New(), "com.fibli.iap.bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestRequestPurchaseUnsupportedPlatform(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	platform.supported = false

	err := ledger.RequestPurchase(context.Background(), uuid.New(), domain.ProductTwentyUsesPack)
	assert.ErrorIs(t, err, domain.ErrPlatformUnsupported)
}

func TestRequestPurchaseAlreadyOwnedTriggersRestore(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	platform.oneTimeErr = domain.ErrAlreadyOwned
	platform.available[userID] = []domain.PurchaseRecord{{
		ProductID:     domain.ProductTwentyUsesPack,
		TransactionID: "txn-old",
		TransactedAt:  time.Now().Add(-time.Hour),
	}}

	require.NoError(t, ledger.RequestPurchase(ctx, userID, domain.ProductTwentyUsesPack))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.PurchasedRemaining, "already-owned purchase recovered via restore")
}

func TestRequestPurchaseFailure(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	platform.oneTimeErr = domain.ErrPurchaseRequestFailed

	err := ledger.RequestPurchase(context.Background(), uuid.New(), domain.ProductTwentyUsesPack)
	assert.ErrorIs(t, err, domain.ErrPurchaseRequestFailed)
}

func TestRestoreAllPurchasesIdempotent(t *testing.T) {
	ledger, _, _, platform, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	platform.available[userID] = []domain.PurchaseRecord{
		{ProductID: domain.ProductTwentyUsesPack, TransactionID: "txn-1", TransactedAt: time.Now().Add(-2 * time.Hour)},
		{ProductID: domain.ProductMonthlySubscription, TransactionID: "txn-2", TransactedAt: time.Now().Add(-time.Hour)},
	}

	require.NoError(t, ledger.RestoreAllPurchases(ctx, userID))
	require.NoError(t, ledger.RestoreAllPurchases(ctx, userID))

	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.PurchasedRemaining)
	assert.True(t, state.IsSubscribed)
}

func TestConsumeStorageFailureAborts(t *testing.T) {
	ledger, counters, _, _, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	counters.failing = true

	err := ledger.ConsumeOneGeneration(ctx, userID)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	counters.failing = false
	state, err := ledger.QueryState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.FreeRemaining, "failed consume must not burn quota")
}
