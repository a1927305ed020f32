package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGistRepo struct {
	gists map[uuid.UUID]*domain.StoryGist
}

func newFakeGistRepo() *fakeGistRepo {
	return &fakeGistRepo{gists: make(map[uuid.UUID]*domain.StoryGist)}
}

func (r *fakeGistRepo) Create(_ context.Context, gist *domain.StoryGist) error {
	copied := *gist
	r.gists[gist.ID] = &copied
	return nil
}

func (r *fakeGistRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.StoryGist, error) {
	gist, ok := r.gists[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	copied := *gist
	return &copied, nil
}

func (r *fakeGistRepo) ListCompleted(_ context.Context, userID uuid.UUID) ([]domain.StoryGist, error) {
	var result []domain.StoryGist
	for _, gist := range r.gists {
		if gist.UserID == userID && gist.StoryID != nil {
			result = append(result, *gist)
		}
	}
	return result, nil
}

func (r *fakeGistRepo) ListTitles(_ context.Context, userID uuid.UUID) ([]string, error) {
	var titles []string
	for _, gist := range r.gists {
		if gist.UserID == userID {
			titles = append(titles, gist.Title)
		}
	}
	return titles, nil
}

func (r *fakeGistRepo) SetStoryID(_ context.Context, gistID, storyID uuid.UUID) error {
	gist, ok := r.gists[gistID]
	if !ok {
		return domain.ErrStoryNotFound
	}
	gist.StoryID = &storyID
	return nil
}

func (r *fakeGistRepo) MarkEdited(_ context.Context, storyID uuid.UUID, title string) error {
	for _, gist := range r.gists {
		if gist.StoryID != nil && *gist.StoryID == storyID {
			gist.Title = title
			gist.IsEdited = true
			return nil
		}
	}
	return domain.ErrStoryNotFound
}

func (r *fakeGistRepo) DeleteByStoryID(_ context.Context, storyID uuid.UUID) (string, error) {
	for id, gist := range r.gists {
		if gist.StoryID != nil && *gist.StoryID == storyID {
			delete(r.gists, id)
			return gist.Image, nil
		}
	}
	return "", domain.ErrStoryNotFound
}

type fakeStoryRepo struct {
	stories map[uuid.UUID]*domain.Story
}

func newFakeStoryRepo() *fakeStoryRepo {
	return &fakeStoryRepo{stories: make(map[uuid.UUID]*domain.Story)}
}

func (r *fakeStoryRepo) Create(_ context.Context, story *domain.Story) error {
	copied := *story
	r.stories[story.ID] = &copied
	return nil
}

func (r *fakeStoryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Story, error) {
	story, ok := r.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	copied := *story
	return &copied, nil
}

func (r *fakeStoryRepo) Update(_ context.Context, id uuid.UUID, title string, chapters []domain.Chapter) (*domain.Story, error) {
	story, ok := r.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	story.Title = title
	story.Chapters = chapters
	copied := *story
	return &copied, nil
}

func (r *fakeStoryRepo) Delete(_ context.Context, id uuid.UUID) ([]domain.Chapter, error) {
	story, ok := r.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	delete(r.stories, id)
	return story.Chapters, nil
}

type fakeLLM struct {
	titles      []string
	gist        *domain.GistDraft
	chapters    []domain.ChapterDraft
	gistErr     error
	chaptersErr error

	seenExisting []string
}

func (l *fakeLLM) SuggestTitles(_ context.Context, _ string, existing []string) ([]string, error) {
	l.seenExisting = existing
	return l.titles, nil
}

func (l *fakeLLM) GenerateGist(_ context.Context, _ service.GistRequest) (*domain.GistDraft, error) {
	return l.gist, l.gistErr
}

func (l *fakeLLM) GenerateChapters(_ context.Context, _ *domain.StoryGist, _ string) ([]domain.ChapterDraft, error) {
	return l.chapters, l.chaptersErr
}

type fakeImageGen struct {
	err   error
	calls int
}

func (g *fakeImageGen) GenerateImage(_ context.Context, _ string) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return []byte("webp-bytes"), nil
}

type fakeImageStore struct {
	uploaded []string
	removed  []string
	err      error
}

func (s *fakeImageStore) Upload(_ context.Context, filename string, _ []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploaded = append(s.uploaded, filename)
	return "https://cdn.fibli.app/images/" + filename, nil
}

func (s *fakeImageStore) Remove(_ context.Context, filename string) error {
	s.removed = append(s.removed, filename)
	return nil
}

type fakeEntitlement struct {
	allowed  bool
	consumed int
}

func (e *fakeEntitlement) QueryState(context.Context, uuid.UUID) (domain.EntitlementState, error) {
	return domain.EntitlementState{}, nil
}

func (e *fakeEntitlement) CanGenerate(context.Context, uuid.UUID) (bool, error) {
	return e.allowed, nil
}

func (e *fakeEntitlement) ConsumeOneGeneration(context.Context, uuid.UUID) error {
	if !e.allowed {
		return domain.ErrNoAllowanceRemaining
	}
	e.consumed++
	return nil
}

func (e *fakeEntitlement) RequestPurchase(context.Context, uuid.UUID, domain.ProductID) error {
	return nil
}

func (e *fakeEntitlement) RestoreAllPurchases(context.Context, uuid.UUID) error {
	return nil
}

type testEnv struct {
	service     *Service
	gists       *fakeGistRepo
	stories     *fakeStoryRepo
	llm         *fakeLLM
	imageGen    *fakeImageGen
	imageStore  *fakeImageStore
	entitlement *fakeEntitlement
}

func newTestEnv() *testEnv {
	env := &testEnv{
		gists:   newFakeGistRepo(),
		stories: newFakeStoryRepo(),
		llm: &fakeLLM{
			titles: []string{"The Moon Garden", "Brave Little Fox"},
			gist: &domain.GistDraft{
				Preview:     "A fox learns to be brave.",
				ImagePrompt: "a fox under the moon",
				Chapters:    []string{"The fox is afraid", "The fox finds courage"},
			},
			chapters: []domain.ChapterDraft{
				{Title: "The fox is afraid", Content: "Once upon a time...", ImagePrompt: "scared fox"},
				{Title: "The fox finds courage", Content: "And then...", ImagePrompt: "brave fox"},
			},
		},
		imageGen:    &fakeImageGen{},
		imageStore:  &fakeImageStore{},
		entitlement: &fakeEntitlement{allowed: true},
	}
	env.service = New(env.gists, env.stories, env.llm, env.imageGen, env.imageStore, env.entitlement, testLogger())
	return env
}

func (env *testEnv) gistRequest() service.GistRequest {
	return service.GistRequest{
		Title:    "Brave Little Fox",
		AgeRange: domain.AgeRange3to5,
		Length:   domain.LengthShort,
		Mood:     domain.MoodCalming,
		Language: "en",
	}
}

func TestSuggestTitlesPassesExisting(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	require.NoError(t, env.gists.Create(context.Background(), &domain.StoryGist{
		ID: uuid.New(), UserID: userID, Title: "Old Title",
	}))

	titles, err := env.service.SuggestTitles(context.Background(), userID, "en")
	require.NoError(t, err)
	assert.Len(t, titles, 2)
	assert.Equal(t, []string{"Old Title"}, env.llm.seenExisting)
}

func TestGenerateGist(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()

	gist, err := env.service.GenerateGist(context.Background(), userID, env.gistRequest())
	require.NoError(t, err)
	assert.Equal(t, "A fox learns to be brave.", gist.Preview)
	assert.Len(t, gist.Chapters, 2)
	assert.Contains(t, gist.Image, "-cover.webp")

	// черновик ничего не списывает
	assert.Equal(t, 0, env.entitlement.consumed)

	saved, err := env.gists.GetByID(context.Background(), gist.ID)
	require.NoError(t, err)
	assert.Equal(t, gist.Image, saved.Image)
}

func TestGenerateGistDeniedWithoutAllowance(t *testing.T) {
	env := newTestEnv()
	env.entitlement.allowed = false

	_, err := env.service.GenerateGist(context.Background(), uuid.New(), env.gistRequest())
	assert.ErrorIs(t, err, domain.ErrNoAllowanceRemaining)
	assert.Equal(t, 0, env.imageGen.calls)
}

func TestGenerateGistSurvivesImageFailure(t *testing.T) {
	env := newTestEnv()
	env.imageGen.err = errors.New("image provider down")

	gist, err := env.service.GenerateGist(context.Background(), uuid.New(), env.gistRequest())
	require.NoError(t, err)
	assert.Empty(t, gist.Image)

	_, err = env.gists.GetByID(context.Background(), gist.ID)
	assert.NoError(t, err)
}

func TestGenerateStory(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)

	story, err := env.service.GenerateStory(ctx, userID, gist.ID, "en")
	require.NoError(t, err)
	assert.Equal(t, gist.Title, story.Title)
	require.Len(t, story.Chapters, 2)
	assert.Contains(t, story.Chapters[0].Image, "-chapter-1.webp")
	assert.Contains(t, story.Chapters[1].Image, "-chapter-2.webp")

	// списание ровно одно, после сохранения истории
	assert.Equal(t, 1, env.entitlement.consumed)

	// черновик привязан к истории
	saved, err := env.gists.GetByID(ctx, gist.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.StoryID)
	assert.Equal(t, story.ID, *saved.StoryID)
}

func TestGenerateStoryWrongOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, uuid.New(), env.gistRequest())
	require.NoError(t, err)

	_, err = env.service.GenerateStory(ctx, uuid.New(), gist.ID, "en")
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
	assert.Equal(t, 0, env.entitlement.consumed)
}

func TestGenerateStoryDeniedWithoutAllowance(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)

	env.entitlement.allowed = false
	_, err = env.service.GenerateStory(ctx, userID, gist.ID, "en")
	assert.ErrorIs(t, err, domain.ErrNoAllowanceRemaining)
}

func TestUpdateStoryMarksGistEdited(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)
	story, err := env.service.GenerateStory(ctx, userID, gist.ID, "en")
	require.NoError(t, err)

	updated, err := env.service.UpdateStory(ctx, userID, story.ID, "New Title", story.Chapters)
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)

	saved, err := env.gists.GetByID(ctx, gist.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsEdited)
	assert.Equal(t, "New Title", saved.Title)
}

func TestDeleteStoryRemovesImages(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)
	story, err := env.service.GenerateStory(ctx, userID, gist.ID, "en")
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteStory(ctx, userID, story.ID))

	_, err = env.service.GetStory(ctx, userID, story.ID)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)

	// две главы + обложка
	assert.Len(t, env.imageStore.removed, 3)
	assert.Contains(t, env.imageStore.removed, fmt.Sprintf("%s-cover.webp", gist.ID))
	assert.Contains(t, env.imageStore.removed, fmt.Sprintf("%s-chapter-1.webp", story.ID))
}

func TestDeleteStoryWrongOwner(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	gist, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)
	story, err := env.service.GenerateStory(ctx, userID, gist.ID, "en")
	require.NoError(t, err)

	err = env.service.DeleteStory(ctx, uuid.New(), story.ID)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

func TestListGistsOnlyCompleted(t *testing.T) {
	env := newTestEnv()
	userID := uuid.New()
	ctx := context.Background()

	first, err := env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)
	_, err = env.service.GenerateGist(ctx, userID, env.gistRequest())
	require.NoError(t, err)

	_, err = env.service.GenerateStory(ctx, userID, first.ID, "en")
	require.NoError(t, err)

	gists, err := env.service.ListGists(ctx, userID)
	require.NoError(t, err)
	require.Len(t, gists, 1)
	assert.Equal(t, first.ID, gists[0].ID)

	// CreatedAt заполняется при создании
	assert.WithinDuration(t, time.Now(), gists[0].CreatedAt, time.Minute)
}
