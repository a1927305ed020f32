package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgeRange целевой возраст истории
type AgeRange string

const (
	AgeRange3to5  AgeRange = "3-5"
	AgeRange6to8  AgeRange = "6-8"
	AgeRange9to12 AgeRange = "9-12"
)

func (a AgeRange) IsValid() bool {
	switch a {
	case AgeRange3to5, AgeRange6to8, AgeRange9to12:
		return true
	}
	return false
}

// StoryLength длина истории в главах
type StoryLength string

const (
	LengthShort  StoryLength = "short"  // 1-3 главы
	LengthMedium StoryLength = "medium" // 4-6 глав
	LengthLong   StoryLength = "long"   // 7-9 глав
)

func (l StoryLength) IsValid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// ChapterRange текстовое описание диапазона глав для промпта
func (l StoryLength) ChapterRange() string {
	switch l {
	case LengthShort:
		return "1-3 chapters"
	case LengthMedium:
		return "4-6 chapters"
	default:
		return "7-9 chapters"
	}
}

// Mood настроение истории
type Mood string

const (
	MoodHappy       Mood = "happy"
	MoodEducational Mood = "educational"
	MoodAdventurous Mood = "adventurous"
	MoodCalming     Mood = "calming"
	MoodMagical     Mood = "magical"
)

func (m Mood) IsValid() bool {
	switch m {
	case MoodHappy, MoodEducational, MoodAdventurous, MoodCalming, MoodMagical:
		return true
	}
	return false
}

// StoryGist черновик истории: превью, обложка и поглавный план
type StoryGist struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	Title     string      `json:"title" db:"title"`
	Preview   string      `json:"preview" db:"preview"`
	Image     string      `json:"image" db:"image"` // публичный URL обложки, пустой при сбое генерации
	Chapters  []string    `json:"chapters" db:"chapters"`
	AgeRange  AgeRange    `json:"age_range" db:"age_range"`
	Length    StoryLength `json:"length" db:"length"`
	Mood      Mood        `json:"mood" db:"mood"`
	IsEdited  bool        `json:"is_edited" db:"is_edited"`
	StoryID   *uuid.UUID  `json:"story_id,omitempty" db:"story_id"` // заполняется после генерации полной истории
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Chapter глава готовой истории
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

// Story полная сгенерированная история
type Story struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Preview   string    `json:"preview" db:"preview"`
	Image     string    `json:"image" db:"image"`
	Chapters  []Chapter `json:"chapters" db:"chapters"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GistDraft ответ LLM на запрос черновика, до генерации обложки
type GistDraft struct {
	Preview     string   `json:"preview"`
	ImagePrompt string   `json:"imagePrompt"`
	Chapters    []string `json:"chapters"`
}

// ChapterDraft ответ LLM на запрос главы, до генерации иллюстрации
type ChapterDraft struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImagePrompt string `json:"imagePrompt"`
}
