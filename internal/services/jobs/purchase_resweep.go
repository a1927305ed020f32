package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fibli/story-service/internal/ports/repository"
	"github.com/fibli/story-service/internal/ports/service"
)

const purchaseResweepName = "purchase-resweep"

// PurchaseResweep джоба повторной сверки покупок, каждый день в 04:00 UTC.
// Прогоняет восстановление покупок для всех известных покупателей, чтобы
// локальные леджеры не расходились с состоянием магазина.
type PurchaseResweep struct {
	entitlement  service.IEntitlementService
	purchaseRepo repository.IPurchaseRepo
	log          *slog.Logger
}

func NewPurchaseResweep(
	entitlement service.IEntitlementService,
	purchaseRepo repository.IPurchaseRepo,
	log *slog.Logger,
) *PurchaseResweep {
	return &PurchaseResweep{
		entitlement:  entitlement,
		purchaseRepo: purchaseRepo,
		log:          log,
	}
}

func (j *PurchaseResweep) Name() string {
	return purchaseResweepName
}

// NextRun каждый день в 04:00 UTC
func (j *PurchaseResweep) NextRun(now time.Time) time.Time {
	nowUTC := now.UTC()
	next := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 4, 0, 0, 0, time.UTC)
	if next.Before(nowUTC) || next.Equal(nowUTC) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Run восстанавливает покупки всех известных покупателей
func (j *PurchaseResweep) Run(ctx context.Context) error {
	userIDs, err := j.purchaseRepo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list purchase users: %w", err)
	}

	var failed int
	for _, userID := range userIDs {
		if err := j.entitlement.RestoreAllPurchases(ctx, userID); err != nil {
			failed++
			j.log.Error("resweep failed for user",
				"error", err,
				"user_id", userID,
			)
		}
	}

	j.log.Info("purchase resweep finished",
		"users", len(userIDs),
		"failed", failed,
	)

	if failed > 0 {
		return fmt.Errorf("resweep failed for %d of %d users", failed, len(userIDs))
	}
	return nil
}
