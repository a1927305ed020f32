package entitlementController

import "time"

// StateResponse срез состояния прав пользователя
type StateResponse struct {
	FreeRemaining         int        `json:"free_remaining"`
	PurchasedRemaining    int        `json:"purchased_remaining"`
	IsSubscribed          bool       `json:"is_subscribed"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CanGenerate           bool       `json:"can_generate"`
}

// PurchaseRequest запрос покупки продукта
type PurchaseRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}
