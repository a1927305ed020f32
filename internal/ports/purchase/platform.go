package purchase

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
)

// IPlatform платёжная платформа (App Store / Play Market через store-server API).
// Все вызовы асинхронные и могут падать с платформенными ошибками;
// "already owned" различается через errors.Is(err, domain.ErrAlreadyOwned).
type IPlatform interface {
	// InitConnection устанавливает соединение с платёжным слоем
	InitConnection(ctx context.Context) error
	// EndConnection разрывает соединение
	EndConnection(ctx context.Context) error
	// Supported false на деплоях без платёжного слоя
	Supported() bool

	// GetAvailablePurchases возвращает все известные платформе покупки пользователя,
	// включая ещё не финализированные (для restore-обхода)
	GetAvailablePurchases(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error)

	// GetPendingPurchases возвращает нефинализированные покупки по всем пользователям
	// (стартовый обход после подключения)
	GetPendingPurchases(ctx context.Context) ([]domain.PurchaseEvent, error)

	// RequestSubscriptionPurchase инициирует покупку подписки
	RequestSubscriptionPurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error
	// RequestOneTimePurchase инициирует разовую покупку
	RequestOneTimePurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error

	// FinalizeTransaction подтверждает обработку покупки; до подтверждения
	// платформа передоставляет событие
	FinalizeTransaction(ctx context.Context, record domain.PurchaseRecord) error
}

// UpdateHandler получатель живых событий покупок из стрима
type UpdateHandler interface {
	// HandlePurchase обрабатывает одну доставленную покупку
	HandlePurchase(ctx context.Context, event domain.PurchaseEvent) error
	// HandleFailure обрабатывает ошибку платёжного слоя
	HandleFailure(ctx context.Context, failure domain.PurchaseFailure)
}
