package storyController

import "github.com/fibli/story-service/internal/domain"

// SuggestTitlesRequest запрос подбора заголовков
type SuggestTitlesRequest struct {
	Language string `json:"language"`
}

// GenerateGistRequest запрос генерации черновика
type GenerateGistRequest struct {
	Title    string `json:"title" binding:"required"`
	AgeRange string `json:"age_range" binding:"required"`
	Length   string `json:"length" binding:"required"`
	Mood     string `json:"mood" binding:"required"`
	Language string `json:"language"`
}

// GenerateStoryRequest запрос генерации полной истории по черновику
type GenerateStoryRequest struct {
	Language string `json:"language"`
}

// UpdateStoryRequest запрос правки истории
type UpdateStoryRequest struct {
	Title    string           `json:"title" binding:"required"`
	Chapters []domain.Chapter `json:"chapters" binding:"required"`
}
