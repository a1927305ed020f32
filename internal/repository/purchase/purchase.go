package purchaseRepo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/persistence"
	ports "github.com/fibli/story-service/internal/ports/repository"
)

type purchaseColumns struct {
	TableName     string
	TransactionID string
	UserID        string
	ProductID     string
	TransactedAt  string
	RawReceipt    string
}

type appliedColumns struct {
	TableName     string
	TransactionID string
}

type Repository struct {
	db      persistence.Persistence
	Log     *slog.Logger
	columns purchaseColumns
	applied appliedColumns
}

// New создаёт новый репозиторий для работы с записями покупок
func New(db persistence.Persistence, log *slog.Logger) ports.IPurchaseRepo {
	return &Repository{
		db:  db,
		Log: log,
		columns: purchaseColumns{
			TableName:     "purchase_records",
			TransactionID: "transaction_id",
			UserID:        "user_id",
			ProductID:     "product_id",
			TransactedAt:  "transacted_at",
			RawReceipt:    "raw_receipt",
		},
		applied: appliedColumns{
			TableName:     "applied_transactions",
			TransactionID: "transaction_id",
		},
	}
}

func (r *Repository) saveRecordQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%s) DO NOTHING`,
		r.columns.TableName,
		r.columns.TransactionID,
		r.columns.UserID,
		r.columns.ProductID,
		r.columns.TransactedAt,
		r.columns.RawReceipt,
		r.columns.TransactionID)
}

func (r *Repository) markAppliedQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1) ON CONFLICT (%s) DO NOTHING`,
		r.applied.TableName,
		r.applied.TransactionID,
		r.applied.TransactionID)
}

// GetRecordsByProduct возвращает все записи пользователя по продукту,
// новые первыми
func (r *Repository) GetRecordsByProduct(ctx context.Context, userID uuid.UUID, productID domain.ProductID) ([]domain.PurchaseRecord, error) {
	query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s WHERE %s = $1 AND %s = $2 ORDER BY %s DESC`,
		r.columns.ProductID,
		r.columns.TransactionID,
		r.columns.TransactedAt,
		r.columns.RawReceipt,
		r.columns.TableName,
		r.columns.UserID,
		r.columns.ProductID,
		r.columns.TransactedAt)
	var records []domain.PurchaseRecord
	if err := r.db.Select(ctx, &records, query, userID, productID); err != nil {
		r.Log.Error("failed to get purchase records",
			"error", err,
			"user_id", userID,
			"product_id", productID)
		return nil, fmt.Errorf("failed to get purchase records: %w", err)
	}
	return records, nil
}

// IsApplied проверяет, применялась ли транзакция ранее
func (r *Repository) IsApplied(ctx context.Context, transactionID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`,
		r.applied.TableName,
		r.applied.TransactionID)
	var exists bool
	if err := r.db.Get(ctx, &exists, query, transactionID); err != nil {
		r.Log.Error("failed to check applied transaction",
			"error", err,
			"transaction_id", transactionID)
		return false, fmt.Errorf("failed to check applied transaction: %w", err)
	}
	return exists, nil
}

// WithTransaction выполняет функцию в транзакции с автоматическим commit/rollback
func (r *Repository) WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error {
	return r.db.WithTransaction(ctx, fn)
}

// SaveRecordTx сохраняет запись покупки в транзакции
func (r *Repository) SaveRecordTx(ctx context.Context, tx persistence.Transaction, userID uuid.UUID, record domain.PurchaseRecord) error {
	err := tx.Exec(ctx, r.saveRecordQuery(),
		record.TransactionID,
		userID,
		record.ProductID,
		record.TransactedAt,
		record.RawReceipt)
	if err != nil {
		r.Log.Error("failed to save purchase record in transaction",
			"error", err,
			"transaction_id", record.TransactionID,
			"user_id", userID)
		return fmt.Errorf("failed to save purchase record in transaction: %w", err)
	}
	r.Log.Debug("purchase record saved in transaction",
		"transaction_id", record.TransactionID,
		"product_id", record.ProductID,
		"user_id", userID)
	return nil
}

// MarkAppliedTx помечает транзакцию применённой в транзакции. Возвращает
// false, если повторная доставка уже пометила её.
func (r *Repository) MarkAppliedTx(ctx context.Context, tx persistence.Transaction, transactionID string) (bool, error) {
	affected, err := tx.ExecWithResult(ctx, r.markAppliedQuery(), transactionID)
	if err != nil {
		r.Log.Error("failed to mark transaction applied in transaction",
			"error", err,
			"transaction_id", transactionID)
		return false, fmt.Errorf("failed to mark transaction applied in transaction: %w", err)
	}
	if affected == 0 {
		r.Log.Debug("transaction already applied",
			"transaction_id", transactionID)
		return false, nil
	}
	r.Log.Debug("transaction marked applied",
		"transaction_id", transactionID)
	return true, nil
}

// ListUserIDs возвращает всех пользователей с записями покупок
func (r *Repository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s`,
		r.columns.UserID,
		r.columns.TableName)
	var userIDs []uuid.UUID
	if err := r.db.Select(ctx, &userIDs, query); err != nil {
		r.Log.Error("failed to list purchase user ids",
			"error", err)
		return nil, fmt.Errorf("failed to list purchase user ids: %w", err)
	}
	return userIDs, nil
}
