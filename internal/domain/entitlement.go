package domain

import "time"

// ProductID идентификатор продукта в каталоге магазина
type ProductID string

const (
	// ProductMonthlySubscription месячная подписка с безлимитными генерациями
	ProductMonthlySubscription ProductID = "com.fibli.subscription.monthlyunlimited"
	// ProductTwentyUsesPack разовый пакет на 20 генераций
	ProductTwentyUsesPack ProductID = "com.fibli.iap.twentyusagenerations"
)

// IsValid проверяет, что продукт есть в каталоге
func (p ProductID) IsValid() bool {
	switch p {
	case ProductMonthlySubscription, ProductTwentyUsesPack:
		return true
	}
	return false
}

const (
	// PackUnits количество генераций в разовом пакете
	PackUnits = 20
	// DefaultFreeQuota бесплатный лимит генераций на пользователя
	DefaultFreeQuota = 1
	// DefaultSubscriptionWindow окно действия подписки без серверной валидации чека
	DefaultSubscriptionWindow = 30 * 24 * time.Hour
)

// UsageCounters персистентные счётчики использования для одного пользователя.
// Инварианты: оба счётчика неотрицательны, FreeGenerationsUsed не превышает квоту.
type UsageCounters struct {
	FreeGenerationsUsed      int
	PurchasedUnitsRemaining  int
	HasUnlimitedSubscription bool
}

// SubscriptionWindow результат вычисления статуса подписки.
// Выводится заново из записей покупок при каждом запросе, отдельно не хранится.
type SubscriptionWindow struct {
	IsActive  bool
	ExpiresAt *time.Time
}

// EntitlementState срез состояния для вызывающего кода: сколько осталось и есть ли подписка
type EntitlementState struct {
	FreeRemaining         int        `json:"free_remaining"`
	PurchasedRemaining    int        `json:"purchased_remaining"`
	IsSubscribed          bool       `json:"is_subscribed"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
}

// CanGenerate можно ли выполнить ещё одну генерацию
func (s EntitlementState) CanGenerate() bool {
	return s.IsSubscribed || s.FreeRemaining > 0 || s.PurchasedRemaining > 0
}

// EntitlementEventType тип события аудита биллинга
type EntitlementEventType string

const (
	EntitlementEventConsumed   EntitlementEventType = "generation_consumed"
	EntitlementEventReconciled EntitlementEventType = "purchase_reconciled"
)

// EntitlementEvent событие аудита, уходит в Kafka
type EntitlementEvent struct {
	Type          EntitlementEventType `json:"type"`
	UserID        string               `json:"user_id"`
	ProductID     ProductID            `json:"product_id,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	At            time.Time            `json:"at"`
}
