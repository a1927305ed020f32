package purchaseRepo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibli/story-service/internal/adapters/secondary/storage/pg"
	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/persistence"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := New(pg.NewDB(sqlxDB), slog.New(slog.NewTextHandler(io.Discard, nil))).(*Repository)
	return repo, mock
}

func TestGetRecordsByProduct(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	transactedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"product_id", "transaction_id", "transacted_at", "raw_receipt"}).
		AddRow(string(domain.ProductMonthlySubscription), "txn-2", transactedAt, nil).
		AddRow(string(domain.ProductMonthlySubscription), "txn-1", transactedAt.Add(-40*24*time.Hour), nil)

	mock.ExpectQuery(`SELECT .+ FROM purchase_records WHERE`).
		WithArgs(userID, domain.ProductMonthlySubscription).
		WillReturnRows(rows)

	records, err := repo.GetRecordsByProduct(context.Background(), userID, domain.ProductMonthlySubscription)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "txn-2", records[0].TransactionID)
	assert.Equal(t, domain.ProductMonthlySubscription, records[0].ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsApplied(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("txn-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := repo.IsApplied(context.Background(), "txn-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAppliedTx(t *testing.T) {
	t.Run("first delivery", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO applied_transactions`).
			WithArgs("txn-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx persistence.Transaction) error {
			first, err := repo.MarkAppliedTx(ctx, tx, "txn-1")
			require.NoError(t, err)
			assert.True(t, first)
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate delivery", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO applied_transactions`).
			WithArgs("txn-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx persistence.Transaction) error {
			first, err := repo.MarkAppliedTx(ctx, tx, "txn-1")
			require.NoError(t, err)
			assert.False(t, first)
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithTransactionSaveAndMarkApplied(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	record := domain.PurchaseRecord{
		ProductID:     domain.ProductTwentyUsesPack,
		TransactionID: "txn-200",
		TransactedAt:  time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO purchase_records`).
		WithArgs(record.TransactionID, userID, record.ProductID, record.TransactedAt, record.RawReceipt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO applied_transactions`).
		WithArgs(record.TransactionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx persistence.Transaction) error {
		if err := repo.SaveRecordTx(ctx, tx, userID, record); err != nil {
			return err
		}
		first, err := repo.MarkAppliedTx(ctx, tx, record.TransactionID)
		if err != nil {
			return err
		}
		require.True(t, first)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	record := domain.PurchaseRecord{
		ProductID:     domain.ProductTwentyUsesPack,
		TransactionID: "txn-201",
		TransactedAt:  time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO purchase_records`).
		WithArgs(record.TransactionID, userID, record.ProductID, record.TransactedAt, record.RawReceipt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO applied_transactions`).
		WithArgs(record.TransactionID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx persistence.Transaction) error {
		if err := repo.SaveRecordTx(ctx, tx, userID, record); err != nil {
			return err
		}
		_, err := repo.MarkAppliedTx(ctx, tx, record.TransactionID)
		return err
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
