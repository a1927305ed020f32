package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fibli/story-service/internal/domain"
	purchasePort "github.com/fibli/story-service/internal/ports/purchase"
	"github.com/fibli/story-service/internal/ports/service"
)

// ConnectionState состояние подключения к платёжному слою
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

const connectRetryInterval = 30 * time.Second

// Reconciler держит соединение с платёжной платформой и проводит покупки
// через леджер: стартовый обход незавершённых транзакций после подключения,
// затем живые события из стрима. Реализует purchase.UpdateHandler.
type Reconciler struct {
	Ledger   *Ledger
	Platform purchasePort.IPlatform
	Alerter  service.IAlerterService
	Log      *slog.Logger

	mu    sync.Mutex
	state ConnectionState
}

// NewReconciler создаёт новый реконсилер
func NewReconciler(
	ledger *Ledger,
	platform purchasePort.IPlatform,
	alerter service.IAlerterService,
	log *slog.Logger,
) *Reconciler {
	return &Reconciler{
		Ledger:   ledger,
		Platform: platform,
		Alerter:  alerter,
		Log:      log,
		state:    StateDisconnected,
	}
}

// State текущее состояние подключения
func (r *Reconciler) State() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(state ConnectionState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

// Run устанавливает соединение, выполняет стартовый обход и блокируется до
// отмены контекста. Сбой подключения ретраится, пока контекст жив.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.Platform.Supported() {
		r.Log.Warn("purchase platform not configured, reconciler disabled")
		<-ctx.Done()
		return nil
	}

	for {
		r.setState(StateConnecting)
		if err := r.Platform.InitConnection(ctx); err != nil {
			r.setState(StateDisconnected)
			r.Log.Error("failed to connect to purchase platform",
				"error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(connectRetryInterval):
				continue
			}
		}
		break
	}

	r.setState(StateConnected)
	r.Log.Info("purchase platform connected")

	if err := r.sweepPending(ctx); err != nil {
		r.Log.Error("initial purchase sweep failed",
			"error", err)
		r.alert(ctx, fmt.Sprintf("Purchase sweep failed: %v", err))
	}

	<-ctx.Done()

	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Platform.EndConnection(endCtx); err != nil {
		r.Log.Warn("failed to close platform connection",
			"error", err)
	}
	r.setState(StateDisconnected)
	r.Log.Info("purchase platform disconnected")
	return nil
}

// sweepPending проводит через леджер все незавершённые покупки
func (r *Reconciler) sweepPending(ctx context.Context) error {
	events, err := r.Platform.GetPendingPurchases(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending purchases: %w", err)
	}

	var failed int
	for _, event := range events {
		if err := r.Ledger.ReconcilePurchase(ctx, event); err != nil {
			if domain.IsBusinessError(err) {
				continue
			}
			failed++
			r.Log.Error("failed to reconcile pending purchase",
				"error", err,
				"user_id", event.UserID,
				"transaction_id", event.Record.TransactionID)
		}
	}

	r.Log.Info("pending purchase sweep finished",
		"total", len(events),
		"failed", failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d pending purchases failed to reconcile", failed, len(events))
	}
	return nil
}

// HandlePurchase обрабатывает живое событие покупки из стрима
func (r *Reconciler) HandlePurchase(ctx context.Context, event domain.PurchaseEvent) error {
	if err := r.Ledger.ReconcilePurchase(ctx, event); err != nil {
		if !domain.IsBusinessError(err) {
			r.alert(ctx, fmt.Sprintf("Failed to reconcile purchase %s for user %s: %v",
				event.Record.TransactionID, event.UserID, err))
		}
		return err
	}
	return nil
}

// HandleFailure обрабатывает ошибку платёжного слоя из стрима.
// "Already owned" означает рассинхрон с магазином и форсирует восстановление
// покупок; отмена пользователем не ошибка; остальное логируется.
func (r *Reconciler) HandleFailure(ctx context.Context, failure domain.PurchaseFailure) {
	switch {
	case failure.AlreadyOwned:
		r.Log.Info("purchase failure: already owned, forcing restore",
			"user_id", failure.UserID,
			"code", failure.Code)
		if err := r.Ledger.RestoreAllPurchases(ctx, failure.UserID); err != nil {
			r.Log.Error("forced restore failed",
				"error", err,
				"user_id", failure.UserID)
			r.alert(ctx, fmt.Sprintf("Forced purchase restore failed for user %s: %v", failure.UserID, err))
		}
	case failure.Cancelled:
		r.Log.Info("purchase cancelled by user",
			"user_id", failure.UserID,
			"code", failure.Code)
	default:
		r.Log.Error("purchase failure from platform",
			"user_id", failure.UserID,
			"code", failure.Code,
			"message", failure.Message)
	}
}

// alert отправляет алерт в операционный канал; сбой алертера только логируется
func (r *Reconciler) alert(ctx context.Context, message string) {
	if r.Alerter == nil {
		return
	}
	if err := r.Alerter.SendAlert(ctx, message); err != nil {
		r.Log.Warn("failed to send alert",
			"error", err)
	}
}
