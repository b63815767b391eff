package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/models"
)

// Ошибки репозитория переговоров.
var (
	// ErrNegotiationNotFound возвращается, когда предложение не найдено.
	ErrNegotiationNotFound = errors.New("budget negotiation not found")
	// ErrNegotiationNotPending возвращается условным обновлением, когда
	// предложение существует, но уже закрыто другим ответом.
	ErrNegotiationNotPending = errors.New("budget negotiation is not pending")
)

// NegotiationRepository отвечает за работу с таблицей budget_negotiations.
type NegotiationRepository struct {
	db *sqlx.DB
}

// NewNegotiationRepository создаёт экземпляр репозитория.
func NewNegotiationRepository(db *sqlx.DB) *NegotiationRepository {
	return &NegotiationRepository{db: db}
}

// Create сохраняет новое предложение цены.
func (r *NegotiationRepository) Create(ctx context.Context, n *models.BudgetNegotiation) error {
	query := `
		INSERT INTO budget_negotiations (project_id, proposed_by, original_price, proposed_price, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		n.ProjectID, n.ProposedBy, n.OriginalPrice, n.ProposedPrice, n.Message, n.Status,
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("negotiation repository: create %w", err)
	}

	return nil
}

// GetByID возвращает предложение по идентификатору.
func (r *NegotiationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BudgetNegotiation, error) {
	var n models.BudgetNegotiation
	query := `
		SELECT id, project_id, proposed_by, original_price, proposed_price, message, status, created_at, responded_at
		FROM budget_negotiations
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNegotiationNotFound
		}
		return nil, fmt.Errorf("negotiation repository: get by id %w", err)
	}

	return &n, nil
}

// GetPendingByProject возвращает открытое предложение по проекту, если есть.
func (r *NegotiationRepository) GetPendingByProject(ctx context.Context, projectID uuid.UUID) (*models.BudgetNegotiation, error) {
	var n models.BudgetNegotiation
	query := `
		SELECT id, project_id, proposed_by, original_price, proposed_price, message, status, created_at, responded_at
		FROM budget_negotiations
		WHERE project_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &n, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNegotiationNotFound
		}
		return nil, fmt.Errorf("negotiation repository: get pending by project %w", err)
	}

	return &n, nil
}

// ListByProject возвращает всю цепочку переговоров по проекту.
func (r *NegotiationRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BudgetNegotiation, error) {
	query := `
		SELECT id, project_id, proposed_by, original_price, proposed_price, message, status, created_at, responded_at
		FROM budget_negotiations
		WHERE project_id = $1
		ORDER BY created_at ASC
	`

	var list []models.BudgetNegotiation
	if err := r.db.SelectContext(ctx, &list, query, projectID); err != nil {
		return nil, fmt.Errorf("negotiation repository: list by project %w", err)
	}

	return list, nil
}

// Resolve закрывает pending предложение, переводя его в terminal статус.
// Условие по статусу гарантирует, что предложение закрывается ровно один
// раз: параллельный второй ответ получит ErrNegotiationNotPending.
func (r *NegotiationRepository) Resolve(ctx context.Context, id uuid.UUID, status string) (*models.BudgetNegotiation, error) {
	query := `
		UPDATE budget_negotiations
		SET status = $1, responded_at = NOW()
		WHERE id = $2 AND status = 'pending'
		RETURNING id, project_id, proposed_by, original_price, proposed_price, message, status, created_at, responded_at
	`

	var n models.BudgetNegotiation
	if err := r.db.GetContext(ctx, &n, query, status, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNegotiationNotPending
		}
		return nil, fmt.Errorf("negotiation repository: resolve %w", err)
	}

	return &n, nil
}
