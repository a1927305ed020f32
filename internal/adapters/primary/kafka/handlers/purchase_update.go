package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/purchase"
)

const (
	headerEventKind = "event_kind"

	eventKindPurchase = "purchase"
	eventKindError    = "error"
)

// PurchaseUpdateHandler принимает живые события покупок из топика store-уведомлений
// и передаёт их в reconciliation flow
type PurchaseUpdateHandler struct {
	updates purchase.UpdateHandler
	log     *slog.Logger
}

func NewPurchaseUpdateHandler(updates purchase.UpdateHandler, log *slog.Logger) *PurchaseUpdateHandler {
	return &PurchaseUpdateHandler{
		updates: updates,
		log:     log,
	}
}

// HandleMessage разбирает сообщение по заголовку event_kind.
// Ошибка разбора - business error: такое сообщение нельзя обработать и ретраем.
func (h *PurchaseUpdateHandler) HandleMessage(ctx context.Context, key string, value []byte, headers []sarama.RecordHeader) error {
	kind := headerValue(headers, headerEventKind)

	switch kind {
	case eventKindPurchase, "":
		var event domain.PurchaseEvent
		if err := json.Unmarshal(value, &event); err != nil {
			h.log.Warn("failed to unmarshal purchase event, skipping",
				"error", err,
				"key", key,
			)
			return domain.WrapBusinessError(fmt.Errorf("invalid purchase event: %w", err))
		}

		if event.Record.TransactionID == "" {
			h.log.Warn("purchase event without transaction_id, skipping", "key", key)
			return domain.WrapBusinessError(fmt.Errorf("purchase event without transaction_id"))
		}

		return h.updates.HandlePurchase(ctx, event)

	case eventKindError:
		var failure domain.PurchaseFailure
		if err := json.Unmarshal(value, &failure); err != nil {
			h.log.Warn("failed to unmarshal purchase failure, skipping",
				"error", err,
				"key", key,
			)
			return domain.WrapBusinessError(fmt.Errorf("invalid purchase failure: %w", err))
		}

		h.updates.HandleFailure(ctx, failure)
		return nil

	default:
		h.log.Warn("unknown purchase update kind, skipping",
			"kind", kind,
			"key", key,
		)
		return domain.WrapBusinessError(fmt.Errorf("unknown event kind: %s", kind))
	}
}

// headerValue ищет значение заголовка по ключу
func headerValue(headers []sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
