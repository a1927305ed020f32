package service

import (
	"context"

	"github.com/fibli/story-service/internal/domain"
)

// GistRequest параметры запроса черновика у LLM
type GistRequest struct {
	Title    string
	AgeRange domain.AgeRange
	Length   domain.StoryLength
	Mood     domain.Mood
	Language string
}

// ILLMService текстовая генерация через LLM-провайдера
type ILLMService interface {
	// SuggestTitles предлагает 6 новых заголовков, избегая существующих
	SuggestTitles(ctx context.Context, language string, existingTitles []string) ([]string, error)
	// GenerateGist генерирует превью, промпт обложки и план глав
	GenerateGist(ctx context.Context, req GistRequest) (*domain.GistDraft, error)
	// GenerateChapters пишет полные главы по черновику
	GenerateChapters(ctx context.Context, gist *domain.StoryGist, language string) ([]domain.ChapterDraft, error)
}
