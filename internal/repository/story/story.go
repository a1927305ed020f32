package storyRepo

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

type storyColumns struct {
	TableName string
	ID        string
	UserID    string
	Title     string
	Preview   string
	Image     string
	Chapters  string
	CreatedAt string
}

// storyRow строка таблицы; chapters хранится как JSONB
type storyRow struct {
	ID        uuid.UUID    `db:"id"`
	UserID    uuid.UUID    `db:"user_id"`
	Title     string       `db:"title"`
	Preview   string       `db:"preview"`
	Image     string       `db:"image"`
	Chapters  []byte       `db:"chapters"`
	CreatedAt sql.NullTime `db:"created_at"`
}

func (row *storyRow) toDomain() (*domain.Story, error) {
	var chapters []domain.Chapter
	if len(row.Chapters) > 0 {
		if err := json.Unmarshal(row.Chapters, &chapters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chapters: %w", err)
		}
	}
	story := &domain.Story{
		ID:       row.ID,
		UserID:   row.UserID,
		Title:    row.Title,
		Preview:  row.Preview,
		Image:    row.Image,
		Chapters: chapters,
	}
	if row.CreatedAt.Valid {
		story.CreatedAt = row.CreatedAt.Time
	}
	return story, nil
}

type Repository struct {
	db      persistence.Persistence
	Log     *slog.Logger
	columns storyColumns
}

// New создаёт новый репозиторий для работы с готовыми историями
func New(db persistence.Persistence, log *slog.Logger) ports.IStoryRepo {
	return &Repository{
		db:  db,
		Log: log,
		columns: storyColumns{
			TableName: "stories",
			ID:        "id",
			UserID:    "user_id",
			Title:     "title",
			Preview:   "preview",
			Image:     "image",
			Chapters:  "chapters",
			CreatedAt: "created_at",
		},
	}
}

// allColumns возвращает строку со всеми колонками (7 колонок)
func (r *Repository) allColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s",
		r.columns.ID,
		r.columns.UserID,
		r.columns.Title,
		r.columns.Preview,
		r.columns.Image,
		r.columns.Chapters,
		r.columns.CreatedAt)
}

// Create сохраняет новую историю
func (r *Repository) Create(ctx context.Context, story *domain.Story) error {
	chapters, err := json.Marshal(story.Chapters)
	if err != nil {
		return fmt.Errorf("failed to marshal chapters: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.columns.TableName,
		r.allColumns())
	err = r.db.Exec(ctx, query,
		story.ID,
		story.UserID,
		story.Title,
		story.Preview,
		story.Image,
		chapters,
		story.CreatedAt)
	if err != nil {
		r.Log.Error("failed to create story",
			"error", err,
			"story_id", story.ID,
			"user_id", story.UserID)
		return fmt.Errorf("failed to create story: %w", err)
	}
	r.Log.Debug("story created successfully",
		"story_id", story.ID,
		"user_id", story.UserID)
	return nil
}

// GetByID возвращает историю по идентификатору
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		r.allColumns(),
		r.columns.TableName,
		r.columns.ID)
	var row storyRow
	if err := r.db.Get(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStoryNotFound
		}
		r.Log.Error("failed to get story",
			"error", err,
			"story_id", id)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return row.toDomain()
}

// Update обновляет заголовок и главы истории и возвращает новое состояние
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title string, chapters []domain.Chapter) (*domain.Story, error) {
	chaptersJSON, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chapters: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $1, %s = $2 WHERE %s = $3 RETURNING %s`,
		r.columns.TableName,
		r.columns.Title,
		r.columns.Chapters,
		r.columns.ID,
		r.allColumns())
	var row storyRow
	if err := r.db.Get(ctx, &row, query, title, chaptersJSON, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStoryNotFound
		}
		r.Log.Error("failed to update story",
			"error", err,
			"story_id", id)
		return nil, fmt.Errorf("failed to update story: %w", err)
	}
	r.Log.Debug("story updated",
		"story_id", id)
	return row.toDomain()
}

// Delete удаляет историю и возвращает её главы для очистки иллюстраций
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) ([]domain.Chapter, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING %s`,
		r.columns.TableName,
		r.columns.ID,
		r.columns.Chapters)
	var chaptersJSON []byte
	if err := r.db.Get(ctx, &chaptersJSON, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStoryNotFound
		}
		r.Log.Error("failed to delete story",
			"error", err,
			"story_id", id)
		return nil, fmt.Errorf("failed to delete story: %w", err)
	}

	var chapters []domain.Chapter
	if len(chaptersJSON) > 0 {
		if err := json.Unmarshal(chaptersJSON, &chapters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chapters: %w", err)
		}
	}
	r.Log.Debug("story deleted",
		"story_id", id)
	return chapters, nil
}
