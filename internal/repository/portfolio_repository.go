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

// ErrPortfolioItemNotFound возвращается, когда работа портфолио не найдена.
var ErrPortfolioItemNotFound = errors.New("portfolio item not found")

// PortfolioRepository отвечает за работу с таблицей portfolio_items.
type PortfolioRepository struct {
	db *sqlx.DB
}

// NewPortfolioRepository создаёт экземпляр репозитория.
func NewPortfolioRepository(db *sqlx.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create добавляет работу в портфолио.
func (r *PortfolioRepository) Create(ctx context.Context, item *models.PortfolioItem) error {
	query := `
		INSERT INTO portfolio_items (title, description, category, technologies, image_url, demo_url, completed_at, featured, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		item.Title, item.Description, item.Category, item.Technologies,
		item.ImageURL, item.DemoURL, item.CompletedAt, item.Featured,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("portfolio repository: create %w", err)
	}

	return nil
}

// GetByID возвращает работу портфолио.
func (r *PortfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PortfolioItem, error) {
	return common.GetByID[models.PortfolioItem](ctx, r.db, "portfolio_items", id, ErrPortfolioItemNotFound)
}

// ListActive возвращает публичное портфолио: активные работы,
// избранные первыми.
func (r *PortfolioRepository) ListActive(ctx context.Context, category string) ([]models.PortfolioItem, error) {
	query := `
		SELECT id, title, description, category, technologies, image_url, demo_url, completed_at, featured, is_active, created_at, updated_at
		FROM portfolio_items
		WHERE is_active = TRUE
	`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY featured DESC, completed_at DESC`

	var items []models.PortfolioItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("portfolio repository: list active %w", err)
	}

	return items, nil
}

// Update обновляет работу портфолио.
func (r *PortfolioRepository) Update(ctx context.Context, item *models.PortfolioItem) error {
	query := `
		UPDATE portfolio_items
		SET title = $1, description = $2, category = $3, technologies = $4,
			image_url = $5, demo_url = $6, completed_at = $7, featured = $8,
			is_active = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		item.Title, item.Description, item.Category, item.Technologies,
		item.ImageURL, item.DemoURL, item.CompletedAt, item.Featured,
		item.IsActive, item.ID,
	).Scan(&item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPortfolioItemNotFound
		}
		return fmt.Errorf("portfolio repository: update %w", err)
	}

	return nil
}

// Delete удаляет работу портфолио.
func (r *PortfolioRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("portfolio repository: delete %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("portfolio repository: delete rows affected %w", err)
	}
	if affected == 0 {
		return ErrPortfolioItemNotFound
	}

	return nil
}
