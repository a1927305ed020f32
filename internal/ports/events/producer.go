package events

import (
	"context"

	"github.com/fibli/story-service/internal/domain"
)

// IAuditProducer отправка событий аудита биллинга во внешнюю шину
type IAuditProducer interface {
	SendEntitlementEvent(ctx context.Context, event domain.EntitlementEvent) error
	Close() error
}
