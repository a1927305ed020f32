package appstore

import (
	"time"

	"github.com/google/uuid"
)

// purchaseRow запись покупки в ответе store-server
type purchaseRow struct {
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"transaction_id"`
	TransactedAt  time.Time `json:"transacted_at"`
	RawReceipt    []byte    `json:"raw_receipt,omitempty"`
	UserID        uuid.UUID `json:"user_id,omitempty"`
}

type availablePurchasesRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type availablePurchasesResponse struct {
	Purchases []purchaseRow `json:"purchases"`
}

type purchaseRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	ProductID string    `json:"product_id"`
}

type finalizeRequest struct {
	TransactionID string `json:"transaction_id"`
	RawReceipt    []byte `json:"raw_receipt,omitempty"`
}

// apiError тело ошибки store-server
type apiError struct {
	Code    string `json:"code"` // "already_owned", "user_cancelled", ...
	Message string `json:"message"`
}

const (
	errCodeAlreadyOwned  = "already_owned"
	errCodeUserCancelled = "user_cancelled"
)
