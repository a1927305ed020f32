package entitlementController

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/adapters/primary/http/middlewares"
	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/service"
)

type Controller struct {
	Entitlement service.IEntitlementService
	Log         *slog.Logger
}

func New(entitlement service.IEntitlementService, log *slog.Logger) *Controller {
	return &Controller{
		Entitlement: entitlement,
		Log:         log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/v1/entitlement", middlewares.UserIdentity())
	group.GET("", c.getState)
	group.POST("/consume", c.consume)
	group.POST("/purchase", c.purchase)
	group.POST("/restore", c.restore)
}

func (c *Controller) getState(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	state, err := c.Entitlement.QueryState(ctx.Request.Context(), userID)
	if err != nil {
		c.respondError(ctx, userID, err)
		return
	}

	ctx.JSON(http.StatusOK, StateResponse{
		FreeRemaining:         state.FreeRemaining,
		PurchasedRemaining:    state.PurchasedRemaining,
		IsSubscribed:          state.IsSubscribed,
		SubscriptionExpiresAt: state.SubscriptionExpiresAt,
		CanGenerate:           state.CanGenerate(),
	})
}

func (c *Controller) consume(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	if err := c.Entitlement.ConsumeOneGeneration(ctx.Request.Context(), userID); err != nil {
		c.respondError(ctx, userID, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

func (c *Controller) purchase(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	var req PurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := c.Entitlement.RequestPurchase(ctx.Request.Context(), userID, domain.ProductID(req.ProductID)); err != nil {
		c.respondError(ctx, userID, err)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (c *Controller) restore(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	if err := c.Entitlement.RestoreAllPurchases(ctx.Request.Context(), userID); err != nil {
		c.respondError(ctx, userID, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondError переводит ошибки леджера в HTTP-статусы
func (c *Controller) respondError(ctx *gin.Context, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, domain.ErrNoAllowanceRemaining):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": "no generation allowance remaining"})
	case errors.Is(err, domain.ErrUnknownProduct):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unknown product"})
	case errors.Is(err, domain.ErrPlatformUnsupported):
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": "purchases not supported"})
	case errors.Is(err, domain.ErrPurchaseRequestFailed):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "purchase request failed"})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.Log.Error("counter storage unavailable",
			"error", err,
			"user_id", userID)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.Log.Error("entitlement operation failed",
			"error", err,
			"user_id", userID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
