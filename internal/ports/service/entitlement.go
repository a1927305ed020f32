package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
)

// IEntitlementService публичные операции леджера для остальных компонентов
type IEntitlementService interface {
	QueryState(ctx context.Context, userID uuid.UUID) (domain.EntitlementState, error)
	CanGenerate(ctx context.Context, userID uuid.UUID) (bool, error)
	ConsumeOneGeneration(ctx context.Context, userID uuid.UUID) error
	RequestPurchase(ctx context.Context, userID uuid.UUID, productID domain.ProductID) error
	RestoreAllPurchases(ctx context.Context, userID uuid.UUID) error
}
