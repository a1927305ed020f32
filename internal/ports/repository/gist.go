package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
)

// IGistRepo хранилище черновиков историй
type IGistRepo interface {
	Create(ctx context.Context, gist *domain.StoryGist) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StoryGist, error)
	// ListCompleted возвращает черновики пользователя с привязанной историей,
	// новые первыми
	ListCompleted(ctx context.Context, userID uuid.UUID) ([]domain.StoryGist, error)
	// ListTitles возвращает заголовки всех черновиков пользователя
	ListTitles(ctx context.Context, userID uuid.UUID) ([]string, error)
	// SetStoryID привязывает черновик к сгенерированной истории
	SetStoryID(ctx context.Context, gistID, storyID uuid.UUID) error
	// MarkEdited обновляет заголовок и помечает черновик отредактированным
	MarkEdited(ctx context.Context, storyID uuid.UUID, title string) error
	// DeleteByStoryID удаляет черновик по истории, возвращает URL обложки
	DeleteByStoryID(ctx context.Context, storyID uuid.UUID) (image string, err error)
}
