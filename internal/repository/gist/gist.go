package gistRepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/persistence"
	ports "github.com/fibli/story-service/internal/ports/repository"
)

type gistColumns struct {
	TableName string
	ID        string
	UserID    string
	Title     string
	Preview   string
	Image     string
	Chapters  string
	AgeRange  string
	Length    string
	Mood      string
	IsEdited  string
	StoryID   string
	CreatedAt string
}

// gistRow строка таблицы; chapters хранится как JSONB
type gistRow struct {
	ID        uuid.UUID          `db:"id"`
	UserID    uuid.UUID          `db:"user_id"`
	Title     string             `db:"title"`
	Preview   string             `db:"preview"`
	Image     string             `db:"image"`
	Chapters  []byte             `db:"chapters"`
	AgeRange  domain.AgeRange    `db:"age_range"`
	Length    domain.StoryLength `db:"length"`
	Mood      domain.Mood        `db:"mood"`
	IsEdited  bool               `db:"is_edited"`
	StoryID   *uuid.UUID         `db:"story_id"`
	CreatedAt sql.NullTime       `db:"created_at"`
}

func (row *gistRow) toDomain() (*domain.StoryGist, error) {
	var chapters []string
	if len(row.Chapters) > 0 {
		if err := json.Unmarshal(row.Chapters, &chapters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chapters: %w", err)
		}
	}
	gist := &domain.StoryGist{
		ID:       row.ID,
		UserID:   row.UserID,
		Title:    row.Title,
		Preview:  row.Preview,
		Image:    row.Image,
		Chapters: chapters,
		AgeRange: row.AgeRange,
		Length:   row.Length,
		Mood:     row.Mood,
		IsEdited: row.IsEdited,
		StoryID:  row.StoryID,
	}
	if row.CreatedAt.Valid {
		gist.CreatedAt = row.CreatedAt.Time
	}
	return gist, nil
}

type Repository struct {
	db      persistence.Persistence
	Log     *slog.Logger
	columns gistColumns
}

// New создаёт новый репозиторий для работы с черновиками историй
func New(db persistence.Persistence, log *slog.Logger) ports.IGistRepo {
	return &Repository{
		db:  db,
		Log: log,
		columns: gistColumns{
			TableName: "story_gists",
			ID:        "id",
			UserID:    "user_id",
			Title:     "title",
			Preview:   "preview",
			Image:     "image",
			Chapters:  "chapters",
			AgeRange:  "age_range",
			Length:    "length",
			Mood:      "mood",
			IsEdited:  "is_edited",
			StoryID:   "story_id",
			CreatedAt: "created_at",
		},
	}
}

// allColumns возвращает строку со всеми колонками (12 колонок)
func (r *Repository) allColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		r.columns.ID,
		r.columns.UserID,
		r.columns.Title,
		r.columns.Preview,
		r.columns.Image,
		r.columns.Chapters,
		r.columns.AgeRange,
		r.columns.Length,
		r.columns.Mood,
		r.columns.IsEdited,
		r.columns.StoryID,
		r.columns.CreatedAt)
}

// Create сохраняет новый черновик
func (r *Repository) Create(ctx context.Context, gist *domain.StoryGist) error {
	chapters, err := json.Marshal(gist.Chapters)
	if err != nil {
		return fmt.Errorf("failed to marshal chapters: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.columns.TableName,
		r.allColumns())
	err = r.db.Exec(ctx, query,
		gist.ID,
		gist.UserID,
		gist.Title,
		gist.Preview,
		gist.Image,
		chapters,
		gist.AgeRange,
		gist.Length,
		gist.Mood,
		gist.IsEdited,
		gist.StoryID,
		gist.CreatedAt)
	if err != nil {
		r.Log.Error("failed to create gist",
			"error", err,
			"gist_id", gist.ID,
			"user_id", gist.UserID)
		return fmt.Errorf("failed to create gist: %w", err)
	}
	r.Log.Debug("gist created successfully",
		"gist_id", gist.ID,
		"user_id", gist.UserID)
	return nil
}

// GetByID возвращает черновик по идентификатору
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StoryGist, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		r.allColumns(),
		r.columns.TableName,
		r.columns.ID)
	var row gistRow
	if err := r.db.Get(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStoryNotFound
		}
		r.Log.Error("failed to get gist",
			"error", err,
			"gist_id", id)
		return nil, fmt.Errorf("failed to get gist: %w", err)
	}
	return row.toDomain()
}

// ListCompleted возвращает черновики пользователя с привязанной историей,
// новые первыми
func (r *Repository) ListCompleted(ctx context.Context, userID uuid.UUID) ([]domain.StoryGist, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NOT NULL ORDER BY %s DESC`,
		r.allColumns(),
		r.columns.TableName,
		r.columns.UserID,
		r.columns.StoryID,
		r.columns.CreatedAt)
	var rows []gistRow
	if err := r.db.Select(ctx, &rows, query, userID); err != nil {
		r.Log.Error("failed to list gists",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("failed to list gists: %w", err)
	}

	gists := make([]domain.StoryGist, 0, len(rows))
	for i := range rows {
		gist, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		gists = append(gists, *gist)
	}
	return gists, nil
}

// ListTitles возвращает заголовки всех черновиков пользователя
func (r *Repository) ListTitles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		r.columns.Title,
		r.columns.TableName,
		r.columns.UserID)
	var titles []string
	if err := r.db.Select(ctx, &titles, query, userID); err != nil {
		r.Log.Error("failed to list gist titles",
			"error", err,
			"user_id", userID)
		return nil, fmt.Errorf("failed to list gist titles: %w", err)
	}
	return titles, nil
}

// SetStoryID привязывает черновик к сгенерированной истории
func (r *Repository) SetStoryID(ctx context.Context, gistID, storyID uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`,
		r.columns.TableName,
		r.columns.StoryID,
		r.columns.ID)
	affected, err := r.db.ExecWithResult(ctx, query, storyID, gistID)
	if err != nil {
		r.Log.Error("failed to set gist story id",
			"error", err,
			"gist_id", gistID,
			"story_id", storyID)
		return fmt.Errorf("failed to set gist story id: %w", err)
	}
	if affected == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// MarkEdited обновляет заголовок черновика и помечает его отредактированным
func (r *Repository) MarkEdited(ctx context.Context, storyID uuid.UUID, title string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = true WHERE %s = $2`,
		r.columns.TableName,
		r.columns.Title,
		r.columns.IsEdited,
		r.columns.StoryID)
	affected, err := r.db.ExecWithResult(ctx, query, title, storyID)
	if err != nil {
		r.Log.Error("failed to mark gist edited",
			"error", err,
			"story_id", storyID)
		return fmt.Errorf("failed to mark gist edited: %w", err)
	}
	if affected == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}

// DeleteByStoryID удаляет черновик по привязанной истории и возвращает
// URL обложки для очистки хранилища изображений
func (r *Repository) DeleteByStoryID(ctx context.Context, storyID uuid.UUID) (string, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING %s`,
		r.columns.TableName,
		r.columns.StoryID,
		r.columns.Image)
	var image string
	if err := r.db.Get(ctx, &image, query, storyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrStoryNotFound
		}
		r.Log.Error("failed to delete gist",
			"error", err,
			"story_id", storyID)
		return "", fmt.Errorf("failed to delete gist: %w", err)
	}
	r.Log.Debug("gist deleted",
		"story_id", storyID)
	return image, nil
}
