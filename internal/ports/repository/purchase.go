package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/persistence"
)

// IPurchaseRepo хранилище записей покупок и множества применённых транзакций
type IPurchaseRepo interface {
	// GetRecordsByProduct возвращает все записи пользователя по продукту
	// (вход для вычисления окна подписки)
	GetRecordsByProduct(ctx context.Context, userID uuid.UUID, productID domain.ProductID) ([]domain.PurchaseRecord, error)

	// IsApplied проверялась ли транзакция ранее
	IsApplied(ctx context.Context, transactionID string) (bool, error)

	// ListUserIDs возвращает всех пользователей, у которых есть записи покупок
	// (вход ежедневного re-sweep)
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)

	// WithTransaction выполняет функцию в транзакции с автоматическим commit/rollback
	WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error

	// SaveRecordTx сохраняет запись покупки в транзакции; повторная
	// запись того же transaction_id не является ошибкой
	SaveRecordTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID, record domain.PurchaseRecord) error

	// MarkAppliedTx помечает транзакцию применённой в транзакции;
	// возвращает false, если она уже была помечена (повторная доставка)
	MarkAppliedTx(ctx context.Context, tx persistence.Transaction, transactionID string) (bool, error)
}
