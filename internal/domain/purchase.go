package domain

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseRecord сырое событие покупки от платёжной платформы.
// RawReceipt не парсится, передаётся как есть в финализацию транзакции.
type PurchaseRecord struct {
	ProductID     ProductID `json:"product_id" db:"product_id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	TransactedAt  time.Time `json:"transacted_at" db:"transacted_at"`
	RawReceipt    []byte    `json:"raw_receipt,omitempty" db:"raw_receipt"`
}

// PurchaseEvent запись покупки вместе с владельцем; так события приходят из стрима
type PurchaseEvent struct {
	UserID uuid.UUID      `json:"user_id"`
	Record PurchaseRecord `json:"record"`
}

// PurchaseFailure ошибка платёжного слоя, доставленная по стриму.
// Такие события не попадают в reconcile; "already owned" форсирует повторный обход.
type PurchaseFailure struct {
	UserID       uuid.UUID `json:"user_id"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	AlreadyOwned bool      `json:"already_owned"`
	Cancelled    bool      `json:"cancelled"`
}
