package entitlement

import (
	"time"

	"github.com/fibli/story-service/internal/domain"
)

// ResolveSubscription вычисляет статус подписки из записей покупок.
// Подписка активна, пока не истекло окно последней транзакции; серверной
// валидации чека нет, окно считается от времени транзакции.
// Чистая функция, результат нигде не сохраняется.
func ResolveSubscription(records []domain.PurchaseRecord, now time.Time, window time.Duration) domain.SubscriptionWindow {
	var latest time.Time
	for _, record := range records {
		if record.ProductID != domain.ProductMonthlySubscription {
			continue
		}
		if record.TransactedAt.After(latest) {
			latest = record.TransactedAt
		}
	}

	if latest.IsZero() {
		return domain.SubscriptionWindow{}
	}

	expiresAt := latest.Add(window)
	if !now.Before(expiresAt) {
		return domain.SubscriptionWindow{}
	}

	return domain.SubscriptionWindow{
		IsActive:  true,
		ExpiresAt: &expiresAt,
	}
}
