package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/repository/common"
)

// ErrTicketNotFound возвращается, когда тикет не найден.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository отвечает за работу с таблицами tickets и ticket_responses.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository создаёт экземпляр репозитория.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create создаёт новый тикет.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (title, description, status, priority, user_id, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		ticket.Title, ticket.Description, ticket.Status, ticket.Priority, ticket.UserID, ticket.ProjectID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return fmt.Errorf("ticket repository: create %w", err)
	}

	return nil
}

// GetByID возвращает тикет по идентификатору.
func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return common.GetByID[models.Ticket](ctx, r.db, "tickets", id, ErrTicketNotFound)
}

// ListByUser возвращает тикеты пользователя.
func (r *TicketRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	query := `
		SELECT id, title, description, status, priority, user_id, project_id, created_at, updated_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, userID); err != nil {
		return nil, fmt.Errorf("ticket repository: list by user %w", err)
	}

	return tickets, nil
}

// ListAll возвращает все тикеты (для поддержки).
func (r *TicketRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Ticket, error) {
	query := `
		SELECT id, title, description, status, priority, user_id, project_id, created_at, updated_at
		FROM tickets
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, limit, offset); err != nil {
		return nil, fmt.Errorf("ticket repository: list all %w", err)
	}

	return tickets, nil
}

// UpdateStatus меняет статус тикета.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("ticket repository: update status %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ticket repository: update status rows affected %w", err)
	}
	if affected == 0 {
		return ErrTicketNotFound
	}

	return nil
}

// CreateResponse добавляет ответ в тикет.
func (r *TicketRepository) CreateResponse(ctx context.Context, resp *models.TicketResponse) error {
	query := `
		INSERT INTO ticket_responses (ticket_id, user_id, message, is_from_support)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		resp.TicketID, resp.UserID, resp.Message, resp.IsFromSupport,
	).Scan(&resp.ID, &resp.CreatedAt); err != nil {
		return fmt.Errorf("ticket repository: create response %w", err)
	}

	return nil
}

// ListResponses возвращает ответы тикета в хронологическом порядке.
func (r *TicketRepository) ListResponses(ctx context.Context, ticketID uuid.UUID) ([]models.TicketResponse, error) {
	query := `
		SELECT id, ticket_id, user_id, message, is_from_support, created_at
		FROM ticket_responses
		WHERE ticket_id = $1
		ORDER BY created_at ASC
	`

	var responses []models.TicketResponse
	if err := r.db.SelectContext(ctx, &responses, query, ticketID); err != nil {
		return nil, fmt.Errorf("ticket repository: list responses %w", err)
	}

	return responses, nil
}
