package story

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/repository"
	"github.com/fibli/story-service/internal/ports/service"
)

const imageContentType = "image/webp"

// Service пайплайн генерации историй: заголовки, черновики, полные истории
// и операции библиотеки. Каждая точка генерации проходит через леджер.
type Service struct {
	GistRepo    repository.IGistRepo
	StoryRepo   repository.IStoryRepo
	LLM         service.ILLMService
	ImageGen    service.IImageGenService
	ImageStore  service.IImageStore
	Entitlement service.IEntitlementService
	Log         *slog.Logger
}

// New создаёт новый сервис историй
func New(
	gistRepo repository.IGistRepo,
	storyRepo repository.IStoryRepo,
	llm service.ILLMService,
	imageGen service.IImageGenService,
	imageStore service.IImageStore,
	entitlement service.IEntitlementService,
	log *slog.Logger,
) *Service {
	return &Service{
		GistRepo:    gistRepo,
		StoryRepo:   storyRepo,
		LLM:         llm,
		ImageGen:    imageGen,
		ImageStore:  imageStore,
		Entitlement: entitlement,
		Log:         log,
	}
}

// SuggestTitles предлагает новые заголовки, избегая уже существующих у пользователя
func (s *Service) SuggestTitles(ctx context.Context, userID uuid.UUID, language string) ([]string, error) {
	existing, err := s.GistRepo.ListTitles(ctx, userID)
	if err != nil {
		return nil, err
	}

	titles, err := s.LLM.SuggestTitles(ctx, language, existing)
	if err != nil {
		s.Log.Error("failed to suggest titles",
			"error", err,
			"user_id", userID)
		return nil, err
	}
	return titles, nil
}

// GenerateGist генерирует черновик истории: превью, план глав и обложку.
// Требует доступного лимита, но ничего не списывает: списание происходит
// один раз после генерации полной истории. Сбой генерации обложки не
// роняет черновик, обложка остаётся пустой.
func (s *Service) GenerateGist(ctx context.Context, userID uuid.UUID, req service.GistRequest) (*domain.StoryGist, error) {
	if err := s.checkAllowance(ctx, userID); err != nil {
		return nil, err
	}

	draft, err := s.LLM.GenerateGist(ctx, req)
	if err != nil {
		s.Log.Error("failed to generate gist",
			"error", err,
			"user_id", userID,
			"title", req.Title)
		return nil, err
	}

	gist := &domain.StoryGist{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     req.Title,
		Preview:   draft.Preview,
		Chapters:  draft.Chapters,
		AgeRange:  req.AgeRange,
		Length:    req.Length,
		Mood:      req.Mood,
		CreatedAt: time.Now(),
	}

	gist.Image = s.generateAndStoreImage(ctx, draft.ImagePrompt, fmt.Sprintf("%s-cover.webp", gist.ID))

	if err := s.GistRepo.Create(ctx, gist); err != nil {
		return nil, err
	}

	s.Log.Info("gist generated",
		"gist_id", gist.ID,
		"user_id", userID,
		"chapters", len(gist.Chapters))
	return gist, nil
}

// GenerateStory генерирует полную историю по черновику: текст всех глав,
// по одной иллюстрации на главу. Одна генерация списывается после
// успешного сохранения истории.
func (s *Service) GenerateStory(ctx context.Context, userID, gistID uuid.UUID, language string) (*domain.Story, error) {
	gist, err := s.GistRepo.GetByID(ctx, gistID)
	if err != nil {
		return nil, err
	}
	if gist.UserID != userID {
		return nil, domain.ErrStoryNotFound
	}

	if err := s.checkAllowance(ctx, userID); err != nil {
		return nil, err
	}

	drafts, err := s.LLM.GenerateChapters(ctx, gist, language)
	if err != nil {
		s.Log.Error("failed to generate chapters",
			"error", err,
			"user_id", userID,
			"gist_id", gistID)
		return nil, err
	}

	storyID := uuid.New()
	chapters := make([]domain.Chapter, 0, len(drafts))
	for i, draft := range drafts {
		chapter := domain.Chapter{
			Title:   draft.Title,
			Content: draft.Content,
		}
		chapter.Image = s.generateAndStoreImage(ctx, draft.ImagePrompt,
			fmt.Sprintf("%s-chapter-%d.webp", storyID, i+1))
		chapters = append(chapters, chapter)
	}

	story := &domain.Story{
		ID:        storyID,
		UserID:    userID,
		Title:     gist.Title,
		Preview:   gist.Preview,
		Image:     gist.Image,
		Chapters:  chapters,
		CreatedAt: time.Now(),
	}

	if err := s.StoryRepo.Create(ctx, story); err != nil {
		return nil, err
	}
	if err := s.GistRepo.SetStoryID(ctx, gistID, storyID); err != nil {
		return nil, err
	}

	// история уже сохранена; сбой списания не должен её терять
	if err := s.Entitlement.ConsumeOneGeneration(ctx, userID); err != nil {
		s.Log.Error("failed to consume generation after story saved",
			"error", err,
			"user_id", userID,
			"story_id", storyID)
	}

	s.Log.Info("story generated",
		"story_id", storyID,
		"gist_id", gistID,
		"user_id", userID,
		"chapters", len(chapters))
	return story, nil
}

// GetStory возвращает историю пользователя
func (s *Service) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*domain.Story, error) {
	story, err := s.StoryRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, domain.ErrStoryNotFound
	}
	return story, nil
}

// ListGists возвращает завершённые черновики пользователя, новые первыми
func (s *Service) ListGists(ctx context.Context, userID uuid.UUID) ([]domain.StoryGist, error) {
	return s.GistRepo.ListCompleted(ctx, userID)
}

// UpdateStory обновляет заголовок и главы истории и помечает черновик отредактированным
func (s *Service) UpdateStory(ctx context.Context, userID, storyID uuid.UUID, title string, chapters []domain.Chapter) (*domain.Story, error) {
	existing, err := s.StoryRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, domain.ErrStoryNotFound
	}

	updated, err := s.StoryRepo.Update(ctx, storyID, title, chapters)
	if err != nil {
		return nil, err
	}

	if err := s.GistRepo.MarkEdited(ctx, storyID, title); err != nil {
		s.Log.Warn("failed to mark gist edited",
			"error", err,
			"story_id", storyID)
	}

	return updated, nil
}

// DeleteStory удаляет историю, её черновик и все сохранённые иллюстрации
func (s *Service) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	existing, err := s.StoryRepo.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return domain.ErrStoryNotFound
	}

	chapters, err := s.StoryRepo.Delete(ctx, storyID)
	if err != nil {
		return err
	}
	for _, chapter := range chapters {
		s.removeImage(ctx, chapter.Image)
	}

	cover, err := s.GistRepo.DeleteByStoryID(ctx, storyID)
	if err != nil {
		s.Log.Warn("failed to delete gist for story",
			"error", err,
			"story_id", storyID)
	} else {
		s.removeImage(ctx, cover)
	}

	s.Log.Info("story deleted",
		"story_id", storyID,
		"user_id", userID)
	return nil
}

// checkAllowance проверяет лимит генераций, не списывая его
func (s *Service) checkAllowance(ctx context.Context, userID uuid.UUID) error {
	allowed, err := s.Entitlement.CanGenerate(ctx, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrNoAllowanceRemaining
	}
	return nil
}

// generateAndStoreImage генерирует иллюстрацию и кладёт её в хранилище.
// Любой сбой деградирует до пустого URL, генерация текста важнее картинок.
func (s *Service) generateAndStoreImage(ctx context.Context, prompt, filename string) string {
	if prompt == "" {
		return ""
	}

	data, err := s.ImageGen.GenerateImage(ctx, prompt)
	if err != nil {
		s.Log.Warn("image generation failed, continuing without image",
			"error", err,
			"filename", filename)
		return ""
	}

	imageURL, err := s.ImageStore.Upload(ctx, filename, data, imageContentType)
	if err != nil {
		s.Log.Warn("image upload failed, continuing without image",
			"error", err,
			"filename", filename)
		return ""
	}
	return imageURL
}

// removeImage удаляет иллюстрацию из хранилища по её публичному URL
func (s *Service) removeImage(ctx context.Context, imageURL string) {
	if imageURL == "" {
		return
	}

	parsed, err := url.Parse(imageURL)
	if err != nil {
		s.Log.Warn("unparseable image url, skipping removal",
			"url", imageURL)
		return
	}
	filename := path.Base(parsed.Path)
	if filename == "." || filename == "/" {
		return
	}

	if err := s.ImageStore.Remove(ctx, filename); err != nil {
		s.Log.Warn("failed to remove image",
			"error", err,
			"filename", filename)
	}
}
