package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/counterstore"
	"github.com/fibli/story-service/internal/ports/events"
	"github.com/fibli/story-service/internal/ports/persistence"
	purchasePort "github.com/fibli/story-service/internal/ports/purchase"
	"github.com/fibli/story-service/internal/ports/repository"
)

const (
	fieldFreeUsed           = "free_used"
	fieldPurchasedRemaining = "purchased_remaining"
)

// Ledger учёт прав на генерацию: бесплатная квота, купленные пакеты, подписка.
// Мутации по одному пользователю сериализуются через мьютекс; подписка
// каждый раз выводится заново из записей покупок, отдельно не хранится.
type Ledger struct {
	Counters      counterstore.Store
	PurchaseRepo  repository.IPurchaseRepo
	Platform      purchasePort.IPlatform
	AuditProducer events.IAuditProducer
	Log           *slog.Logger

	cfg *Config

	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

// userLock мьютекс пользователя со счётчиком ожидающих: запись
// удаляется из карты, когда желающих больше нет
type userLock struct {
	mu   sync.Mutex
	refs int
}

// New создаёт новый леджер
func New(
	counters counterstore.Store,
	purchaseRepo repository.IPurchaseRepo,
	platform purchasePort.IPlatform,
	auditProducer events.IAuditProducer,
	cfg *Config,
	log *slog.Logger,
) *Ledger {
	return &Ledger{
		Counters:      counters,
		PurchaseRepo:  purchaseRepo,
		Platform:      platform,
		AuditProducer: auditProducer,
		Log:           log,
		cfg:           cfg,
		locks:         make(map[uuid.UUID]*userLock),
	}
}

// lockUser захватывает мьютекс пользователя; возвращённая функция
// отпускает его
func (l *Ledger) lockUser(userID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func counterKey(userID uuid.UUID, field string) string {
	return fmt.Sprintf("%s:%s", userID, field)
}

// getCounter читает целочисленный счётчик; отсутствующий ключ означает ноль
func (l *Ledger) getCounter(ctx context.Context, userID uuid.UUID, field string) (int, error) {
	raw, found, err := l.Counters.Get(ctx, counterKey(userID, field))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		l.Log.Warn("corrupt counter value, treating as zero",
			"user_id", userID,
			"field", field,
			"value", raw)
		return 0, nil
	}
	if value < 0 {
		return 0, nil
	}
	return value, nil
}

func (l *Ledger) setCounter(ctx context.Context, userID uuid.UUID, field string, value int) error {
	return l.Counters.Set(ctx, counterKey(userID, field), strconv.Itoa(value))
}

// resolveSubscription выводит статус подписки из записей покупок пользователя
func (l *Ledger) resolveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (domain.SubscriptionWindow, error) {
	records, err := l.PurchaseRepo.GetRecordsByProduct(ctx, userID, domain.ProductMonthlySubscription)
	if err != nil {
		return domain.SubscriptionWindow{}, fmt.Errorf("failed to load subscription records: %w", err)
	}
	return ResolveSubscription(records, now, l.cfg.GetSubscriptionWindow()), nil
}

// queryState собирает срез состояния; вызывается под мьютексом пользователя
func (l *Ledger) queryState(ctx context.Context, userID uuid.UUID, now time.Time) (domain.EntitlementState, error) {
	window, err := l.resolveSubscription(ctx, userID, now)
	if err != nil {
		return domain.EntitlementState{}, err
	}

	freeUsed, err := l.getCounter(ctx, userID, fieldFreeUsed)
	if err != nil {
		return domain.EntitlementState{}, err
	}
	purchased, err := l.getCounter(ctx, userID, fieldPurchasedRemaining)
	if err != nil {
		return domain.EntitlementState{}, err
	}

	freeRemaining := l.cfg.GetFreeQuota() - freeUsed
	if freeRemaining < 0 {
		freeRemaining = 0
	}

	return domain.EntitlementState{
		FreeRemaining:         freeRemaining,
		PurchasedRemaining:    purchased,
		IsSubscribed:          window.IsActive,
		SubscriptionExpiresAt: window.ExpiresAt,
	}, nil
}

// QueryState возвращает текущее состояние прав пользователя
func (l *Ledger) QueryState(ctx context.Context, userID uuid.UUID) (domain.EntitlementState, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	return l.queryState(ctx, userID, time.Now())
}

// CanGenerate можно ли пользователю выполнить ещё одну генерацию
func (l *Ledger) CanGenerate(ctx context.Context, userID uuid.UUID) (bool, error) {
	state, err := l.QueryState(ctx, userID)
	if err != nil {
		return false, err
	}
	return state.CanGenerate(), nil
}

// ConsumeOneGeneration списывает одну генерацию. Порядок списания:
// активная подписка ничего не тратит, затем купленные единицы, затем
// бесплатная квота. При исчерпании возвращает ErrNoAllowanceRemaining.
func (l *Ledger) ConsumeOneGeneration(ctx context.Context, userID uuid.UUID) error {
	unlock := l.lockUser(userID)
	defer unlock()

	now := time.Now()

	window, err := l.resolveSubscription(ctx, userID, now)
	if err != nil {
		return err
	}
	if window.IsActive {
		l.sendAudit(ctx, domain.EntitlementEvent{
			Type:   domain.EntitlementEventConsumed,
			UserID: userID.String(),
			At:     now,
		})
		return nil
	}

	purchased, err := l.getCounter(ctx, userID, fieldPurchasedRemaining)
	if err != nil {
		return err
	}
	if purchased > 0 {
		if err := l.setCounter(ctx, userID, fieldPurchasedRemaining, purchased-1); err != nil {
			return err
		}
		l.Log.Info("purchased unit consumed",
			"user_id", userID,
			"remaining", purchased-1)
		l.sendAudit(ctx, domain.EntitlementEvent{
			Type:   domain.EntitlementEventConsumed,
			UserID: userID.String(),
			At:     now,
		})
		return nil
	}

	freeUsed, err := l.getCounter(ctx, userID, fieldFreeUsed)
	if err != nil {
		return err
	}
	if freeUsed >= l.cfg.GetFreeQuota() {
		return domain.ErrNoAllowanceRemaining
	}
	if err := l.setCounter(ctx, userID, fieldFreeUsed, freeUsed+1); err != nil {
		return err
	}
	l.Log.Info("free generation consumed",
		"user_id", userID,
		"free_used", freeUsed+1)
	l.sendAudit(ctx, domain.EntitlementEvent{
		Type:   domain.EntitlementEventConsumed,
		UserID: userID.String(),
		At:     now,
	})
	return nil
}

// ReconcilePurchase применяет одну доставленную покупку. Запись покупки и
// пометка applied пишутся одной транзакцией БД; кредит пакета идемпотентен
// через маркер транзакции, который пишется атомарно вместе с балансом.
// Финализация идёт строго последней: сбой хранилища на любом шаге оставляет
// транзакцию нефинализированной, платформа доставит её снова, и повторная
// доставка ни дублирует, ни теряет кредит. Каждая доставка финализируется
// заново, чтобы платформа перестала передоставлять событие.
func (l *Ledger) ReconcilePurchase(ctx context.Context, event domain.PurchaseEvent) error {
	unlock := l.lockUser(event.UserID)
	defer unlock()

	record := event.Record

	if !record.ProductID.IsValid() {
		l.Log.Warn("purchase for unknown product, finalizing without credit",
			"user_id", event.UserID,
			"product_id", record.ProductID,
			"transaction_id", record.TransactionID)
		if err := l.Platform.FinalizeTransaction(ctx, record); err != nil {
			return fmt.Errorf("failed to finalize transaction: %w", err)
		}
		return domain.WrapBusinessError(domain.ErrUnknownProduct)
	}

	applied, err := l.PurchaseRepo.IsApplied(ctx, record.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to check applied transaction: %w", err)
	}

	if !applied {
		fn := func(ctx context.Context, tx persistence.Transaction) error {
			if err := l.PurchaseRepo.SaveRecordTx(ctx, tx, event.UserID, record); err != nil {
				return err
			}
			first, err := l.PurchaseRepo.MarkAppliedTx(ctx, tx, record.TransactionID)
			if err != nil {
				return err
			}
			if !first {
				l.Log.Warn("transaction applied concurrently",
					"transaction_id", record.TransactionID)
			}
			return nil
		}
		if err := l.PurchaseRepo.WithTransaction(ctx, fn); err != nil {
			return fmt.Errorf("failed to apply purchase: %w", err)
		}
	}

	if record.ProductID == domain.ProductTwentyUsesPack {
		if err := l.creditPackOnce(ctx, event.UserID, record.TransactionID); err != nil {
			return err
		}
	}

	if err := l.Platform.FinalizeTransaction(ctx, record); err != nil {
		return fmt.Errorf("failed to finalize transaction: %w", err)
	}

	if applied {
		l.Log.Debug("transaction already applied, refinalized",
			"user_id", event.UserID,
			"transaction_id", record.TransactionID)
		return nil
	}

	l.Log.Info("purchase reconciled",
		"user_id", event.UserID,
		"product_id", record.ProductID,
		"transaction_id", record.TransactionID)

	l.sendAudit(ctx, domain.EntitlementEvent{
		Type:          domain.EntitlementEventReconciled,
		UserID:        event.UserID.String(),
		ProductID:     record.ProductID,
		TransactionID: record.TransactionID,
		At:            time.Now(),
	})

	return nil
}

// creditPackOnce начисляет пакет не более одного раза на транзакцию: баланс
// и маркер транзакции пишутся одной атомарной записью, повторная доставка
// видит маркер и пропускает начисление
func (l *Ledger) creditPackOnce(ctx context.Context, userID uuid.UUID, transactionID string) error {
	markerKey := counterKey(userID, "credited:"+transactionID)

	_, credited, err := l.Counters.Get(ctx, markerKey)
	if err != nil {
		return err
	}
	if credited {
		l.Log.Debug("pack already credited",
			"user_id", userID,
			"transaction_id", transactionID)
		return nil
	}

	purchased, err := l.getCounter(ctx, userID, fieldPurchasedRemaining)
	if err != nil {
		return err
	}
	err = l.Counters.SetMulti(ctx, map[string]string{
		counterKey(userID, fieldPurchasedRemaining): strconv.Itoa(purchased + domain.PackUnits),
		markerKey: "1",
	})
	if err != nil {
		return err
	}

	l.Log.Info("pack credited",
		"user_id", userID,
		"transaction_id", transactionID,
		"purchased_remaining", purchased+domain.PackUnits)
	return nil
}

// RequestPurchase инициирует покупку через платформу. Ответ "already owned"
// не ошибка для пользователя: запускается восстановление покупок.
func (l *Ledger) RequestPurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error {
	if !l.Platform.Supported() {
		return domain.ErrPlatformUnsupported
	}
	if !productID.IsValid() {
		return domain.ErrUnknownProduct
	}

	var err error
	if productID == domain.ProductMonthlySubscription {
		err = l.Platform.RequestSubscriptionPurchase(ctx, userID, productID)
	} else {
		err = l.Platform.RequestOneTimePurchase(ctx, userID, productID)
	}
	if err == nil {
		l.Log.Info("purchase requested",
			"user_id", userID,
			"product_id", productID)
		return nil
	}

	if errors.Is(err, domain.ErrAlreadyOwned) {
		l.Log.Info("product already owned, restoring purchases",
			"user_id", userID,
			"product_id", productID)
		return l.RestoreAllPurchases(ctx, userID)
	}

	l.Log.Error("purchase request failed",
		"error", err,
		"user_id", userID,
		"product_id", productID)
	return fmt.Errorf("%w: %v", domain.ErrPurchaseRequestFailed, err)
}

// RestoreAllPurchases повторно проводит через reconcile все покупки
// пользователя, известные платформе
func (l *Ledger) RestoreAllPurchases(ctx context.Context, userID uuid.UUID) error {
	if !l.Platform.Supported() {
		return domain.ErrPlatformUnsupported
	}

	records, err := l.Platform.GetAvailablePurchases(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get available purchases: %w", err)
	}

	for _, record := range records {
		if err := l.ReconcilePurchase(ctx, domain.PurchaseEvent{UserID: userID, Record: record}); err != nil {
			if domain.IsBusinessError(err) {
				continue
			}
			return fmt.Errorf("failed to reconcile restored purchase %s: %w", record.TransactionID, err)
		}
	}

	l.Log.Info("purchases restored",
		"user_id", userID,
		"count", len(records))
	return nil
}

// sendAudit отправляет событие аудита; сбой шины не влияет на операцию
func (l *Ledger) sendAudit(ctx context.Context, event domain.EntitlementEvent) {
	if l.AuditProducer == nil {
		return
	}
	if err := l.AuditProducer.SendEntitlementEvent(ctx, event); err != nil {
		l.Log.Warn("failed to send audit event",
			"error", err,
			"event_type", event.Type,
			"user_id", event.UserID)
	}
}
