package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
)

// IStoryRepo хранилище готовых историй
type IStoryRepo interface {
	Create(ctx context.Context, story *domain.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Story, error)
	// Update обновляет заголовок и главы истории
	Update(ctx context.Context, id uuid.UUID, title string, chapters []domain.Chapter) (*domain.Story, error)
	// Delete удаляет историю, возвращает её главы для очистки иллюстраций
	Delete(ctx context.Context, id uuid.UUID) ([]domain.Chapter, error)
}
