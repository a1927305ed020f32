package storyController

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/adapters/primary/http/middlewares"
	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/service"
	storyUsecase "github.com/fibli/story-service/internal/usecases/story"
)

type Controller struct {
	Stories *storyUsecase.Service
	Log     *slog.Logger
}

func New(stories *storyUsecase.Service, log *slog.Logger) *Controller {
	return &Controller{
		Stories: stories,
		Log:     log,
	}
}

func (c *Controller) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/v1", middlewares.UserIdentity())
	group.POST("/titles/suggest", c.suggestTitles)
	group.POST("/gists", c.generateGist)
	group.GET("/gists", c.listGists)
	group.POST("/gists/:id/story", c.generateStory)
	group.GET("/stories/:id", c.getStory)
	group.PUT("/stories/:id", c.updateStory)
	group.DELETE("/stories/:id", c.deleteStory)
}

func (c *Controller) suggestTitles(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	var req SuggestTitlesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	titles, err := c.Stories.SuggestTitles(ctx.Request.Context(), userID, req.Language)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"titles": titles})
}

func (c *Controller) generateGist(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	var req GenerateGistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ageRange := domain.AgeRange(req.AgeRange)
	length := domain.StoryLength(req.Length)
	mood := domain.Mood(req.Mood)
	if !ageRange.IsValid() || !length.IsValid() || !mood.IsValid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid story parameters"})
		return
	}

	gist, err := c.Stories.GenerateGist(ctx.Request.Context(), userID, service.GistRequest{
		Title:    req.Title,
		AgeRange: ageRange,
		Length:   length,
		Mood:     mood,
		Language: req.Language,
	})
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gist)
}

func (c *Controller) listGists(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	gists, err := c.Stories.ListGists(ctx.Request.Context(), userID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"gists": gists})
}

func (c *Controller) generateStory(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	gistID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid gist id"})
		return
	}

	var req GenerateStoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	story, err := c.Stories.GenerateStory(ctx.Request.Context(), userID, gistID, req.Language)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, story)
}

func (c *Controller) getStory(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	storyID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
		return
	}

	story, err := c.Stories.GetStory(ctx.Request.Context(), userID, storyID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, story)
}

func (c *Controller) updateStory(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	storyID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
		return
	}

	var req UpdateStoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	story, err := c.Stories.UpdateStory(ctx.Request.Context(), userID, storyID, req.Title, req.Chapters)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, story)
}

func (c *Controller) deleteStory(ctx *gin.Context) {
	userID, ok := middlewares.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing user identity"})
		return
	}

	storyID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
		return
	}

	if err := c.Stories.DeleteStory(ctx.Request.Context(), userID, storyID); err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondError переводит ошибки пайплайна в HTTP-статусы
func (c *Controller) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrStoryNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
	case errors.Is(err, domain.ErrNoAllowanceRemaining):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": "no generation allowance remaining"})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.Log.Error("counter storage unavailable", "error", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.Log.Error("story operation failed", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
