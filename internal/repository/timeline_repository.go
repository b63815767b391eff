package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/repository/common"
)

// ErrTimelineItemNotFound возвращается, когда элемент таймлайна не найден.
var ErrTimelineItemNotFound = errors.New("timeline item not found")

// TimelineRepository отвечает за работу с таблицей project_timeline.
type TimelineRepository struct {
	db *sqlx.DB
}

// NewTimelineRepository создаёт экземпляр репозитория.
func NewTimelineRepository(db *sqlx.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Create добавляет элемент таймлайна.
func (r *TimelineRepository) Create(ctx context.Context, item *models.TimelineItem) error {
	query := `
		INSERT INTO project_timeline (project_id, title, description, status, estimated_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		item.ProjectID, item.Title, item.Description, item.Status, item.EstimatedDate,
	).Scan(&item.ID, &item.CreatedAt); err != nil {
		return fmt.Errorf("timeline repository: create %w", err)
	}

	return nil
}

// CreateBatch вставляет элементы таймлайна одной транзакцией.
// Используется при автоматическом заполнении таймлайна нового проекта.
func (r *TimelineRepository) CreateBatch(ctx context.Context, items []*models.TimelineItem) error {
	if len(items) == 0 {
		return nil
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO project_timeline (project_id, title, description, status, estimated_date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		for _, item := range items {
			if err := tx.QueryRowxContext(
				ctx, query,
				item.ProjectID, item.Title, item.Description, item.Status, item.EstimatedDate,
			).Scan(&item.ID, &item.CreatedAt); err != nil {
				return fmt.Errorf("timeline repository: create batch %w", err)
			}
		}
		return nil
	})
}

// ListByProject возвращает таймлайн проекта в порядке создания.
func (r *TimelineRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.TimelineItem, error) {
	query := `
		SELECT id, project_id, title, description, status, estimated_date, completed_at, created_at
		FROM project_timeline
		WHERE project_id = $1
		ORDER BY created_at ASC
	`

	var items []models.TimelineItem
	if err := r.db.SelectContext(ctx, &items, query, projectID); err != nil {
		return nil, fmt.Errorf("timeline repository: list by project %w", err)
	}

	return items, nil
}

// UpdateStatus меняет статус элемента. completed_at проставляется при
// переходе в completed и сбрасывается при выходе из него.
func (r *TimelineRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.TimelineItem, error) {
	query := `
		UPDATE project_timeline
		SET status = $1,
			completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE NULL END
		WHERE id = $2
		RETURNING id, project_id, title, description, status, estimated_date, completed_at, created_at
	`

	var item models.TimelineItem
	if err := r.db.GetContext(ctx, &item, query, status, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTimelineItemNotFound
		}
		return nil, fmt.Errorf("timeline repository: update status %w", err)
	}

	return &item, nil
}

// Delete удаляет элемент таймлайна.
func (r *TimelineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM project_timeline WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("timeline repository: delete %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timeline repository: delete rows affected %w", err)
	}
	if affected == 0 {
		return ErrTimelineItemNotFound
	}

	return nil
}

// Counts возвращает общее число элементов таймлайна и число завершённых.
func (r *TimelineRepository) Counts(ctx context.Context, projectID uuid.UUID) (total int, completed int, err error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed
		FROM project_timeline
		WHERE project_id = $1
	`

	if err := r.db.QueryRowContext(ctx, query, projectID).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("timeline repository: counts %w", err)
	}

	return total, completed, nil
}
