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

// Ошибки репозитория этапов оплаты.
var (
	// ErrStageNotFound возвращается, когда этап оплаты не найден.
	ErrStageNotFound = errors.New("payment stage not found")
	// ErrStageNotAvailable возвращается условными обновлениями, когда
	// этап существует, но находится не в том статусе, который требует операция.
	ErrStageNotAvailable = errors.New("payment stage is not in required status")
)

// StageRepository отвечает за работу с таблицей payment_stages.
type StageRepository struct {
	db *sqlx.DB
}

// NewStageRepository создаёт экземпляр репозитория.
func NewStageRepository(db *sqlx.DB) *StageRepository {
	return &StageRepository{db: db}
}

// CreateBatch вставляет этапы оплаты проекта одной транзакцией:
// либо создаются все, либо ни одного.
func (r *StageRepository) CreateBatch(ctx context.Context, stages []*models.PaymentStage) error {
	if len(stages) == 0 {
		return nil
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO payment_stages (project_id, stage_name, stage_percentage, amount, required_progress, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		for _, stage := range stages {
			if err := tx.QueryRowxContext(
				ctx, query,
				stage.ProjectID, stage.StageName, stage.StagePercentage,
				stage.Amount, stage.RequiredProgress, stage.Status,
			).Scan(&stage.ID, &stage.CreatedAt, &stage.UpdatedAt); err != nil {
				return fmt.Errorf("stage repository: create batch %w", err)
			}
		}
		return nil
	})
}

// GetByID возвращает этап оплаты по идентификатору.
func (r *StageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentStage, error) {
	var stage models.PaymentStage
	query := `
		SELECT id, project_id, stage_name, stage_percentage, amount, required_progress, status, payment_link, mercado_pago_id, paid_at, created_at, updated_at
		FROM payment_stages
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &stage, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("stage repository: get by id %w", err)
	}

	return &stage, nil
}

// ListByProject возвращает этапы проекта в порядке порога прогресса.
func (r *StageRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.PaymentStage, error) {
	query := `
		SELECT id, project_id, stage_name, stage_percentage, amount, required_progress, status, payment_link, mercado_pago_id, paid_at, created_at, updated_at
		FROM payment_stages
		WHERE project_id = $1
		ORDER BY required_progress ASC, created_at ASC
	`

	var stages []models.PaymentStage
	if err := r.db.SelectContext(ctx, &stages, query, projectID); err != nil {
		return nil, fmt.Errorf("stage repository: list by project %w", err)
	}

	return stages, nil
}

// CountByProject возвращает число этапов проекта.
func (r *StageRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payment_stages WHERE project_id = $1`, projectID); err != nil {
		return 0, fmt.Errorf("stage repository: count by project %w", err)
	}
	return count, nil
}

// UnlockReached переводит в available все pending этапы, чей порог
// не превышает текущий прогресс, и возвращает разблокированные этапы.
// Условие по статусу делает операцию идемпотентной: уже открытые и
// оплаченные этапы не трогаются.
func (r *StageRepository) UnlockReached(ctx context.Context, projectID uuid.UUID, progress int) ([]models.PaymentStage, error) {
	query := `
		UPDATE payment_stages
		SET status = 'available', updated_at = NOW()
		WHERE project_id = $1 AND required_progress <= $2 AND status = 'pending'
		RETURNING id, project_id, stage_name, stage_percentage, amount, required_progress, status, payment_link, mercado_pago_id, paid_at, created_at, updated_at
	`

	var unlocked []models.PaymentStage
	if err := r.db.SelectContext(ctx, &unlocked, query, projectID, progress); err != nil {
		return nil, fmt.Errorf("stage repository: unlock reached %w", err)
	}

	return unlocked, nil
}

// SetPaymentLink записывает платёжную ссылку и внешний идентификатор
// платежа. Обновляются только этапы в статусе available: на pending и
// paid этапы ссылку выпускать нельзя.
func (r *StageRepository) SetPaymentLink(ctx context.Context, stageID uuid.UUID, link, mercadoPagoID string) (*models.PaymentStage, error) {
	query := `
		UPDATE payment_stages
		SET payment_link = $1, mercado_pago_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'available'
		RETURNING id, project_id, stage_name, stage_percentage, amount, required_progress, status, payment_link, mercado_pago_id, paid_at, created_at, updated_at
	`

	var stage models.PaymentStage
	if err := r.db.GetContext(ctx, &stage, query, link, mercadoPagoID, stageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotAvailable
		}
		return nil, fmt.Errorf("stage repository: set payment link %w", err)
	}

	return &stage, nil
}

// ConfirmPaid переводит этап в paid. Повторный вызов для уже оплаченного
// этапа возвращает ErrStageNotAvailable, не трогая paid_at.
func (r *StageRepository) ConfirmPaid(ctx context.Context, stageID uuid.UUID) (*models.PaymentStage, error) {
	query := `
		UPDATE payment_stages
		SET status = 'paid', paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'paid'
		RETURNING id, project_id, stage_name, stage_percentage, amount, required_progress, status, payment_link, mercado_pago_id, paid_at, created_at, updated_at
	`

	var stage models.PaymentStage
	if err := r.db.GetContext(ctx, &stage, query, stageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotAvailable
		}
		return nil, fmt.Errorf("stage repository: confirm paid %w", err)
	}

	return &stage, nil
}

// GetByExternalReference находит этап по внешней ссылке платежа
// вида "stage-<uuid>", которую несёт вебхук MercadoPago.
func (r *StageRepository) GetByExternalReference(ctx context.Context, externalRef string) (*models.PaymentStage, error) {
	stageID, err := parseStageReference(externalRef)
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, stageID)
}

// parseStageReference извлекает идентификатор этапа из external_reference.
func parseStageReference(externalRef string) (uuid.UUID, error) {
	const prefix = "stage-"
	if len(externalRef) <= len(prefix) || externalRef[:len(prefix)] != prefix {
		return uuid.Nil, fmt.Errorf("stage repository: malformed external reference %q", externalRef)
	}

	stageID, err := uuid.Parse(externalRef[len(prefix):])
	if err != nil {
		return uuid.Nil, fmt.Errorf("stage repository: malformed external reference %q: %w", externalRef, err)
	}

	return stageID, nil
}
