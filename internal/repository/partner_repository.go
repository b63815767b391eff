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

// ErrPartnerNotFound возвращается, когда партнёр не найден.
var ErrPartnerNotFound = errors.New("partner not found")

// ErrReferralNotFound возвращается, когда реферал не найден.
var ErrReferralNotFound = errors.New("referral not found")

// PartnerRepository отвечает за работу с таблицами partners и referrals.
type PartnerRepository struct {
	db *sqlx.DB
}

// NewPartnerRepository создаёт экземпляр репозитория.
func NewPartnerRepository(db *sqlx.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// Create создаёт запись партнёра.
func (r *PartnerRepository) Create(ctx context.Context, partner *models.Partner) error {
	query := `
		INSERT INTO partners (user_id, referral_code, commission_rate, total_earnings)
		VALUES ($1, $2, $3, 0)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		partner.UserID, partner.ReferralCode, partner.CommissionRate,
	).Scan(&partner.ID, &partner.CreatedAt); err != nil {
		return fmt.Errorf("partner repository: create %w", err)
	}

	return nil
}

// GetByID возвращает партнёра по идентификатору.
func (r *PartnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	query := `
		SELECT id, user_id, referral_code, commission_rate, total_earnings, created_at
		FROM partners
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &partner, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("partner repository: get by id %w", err)
	}

	return &partner, nil
}

// GetByUserID возвращает партнёра по идентификатору пользователя.
func (r *PartnerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	query := `
		SELECT id, user_id, referral_code, commission_rate, total_earnings, created_at
		FROM partners
		WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &partner, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("partner repository: get by user id %w", err)
	}

	return &partner, nil
}

// GetByReferralCode возвращает партнёра по реферальному коду.
func (r *PartnerRepository) GetByReferralCode(ctx context.Context, code string) (*models.Partner, error) {
	var partner models.Partner
	query := `
		SELECT id, user_id, referral_code, commission_rate, total_earnings, created_at
		FROM partners
		WHERE referral_code = $1
	`
	if err := r.db.GetContext(ctx, &partner, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("partner repository: get by referral code %w", err)
	}

	return &partner, nil
}

// CreateReferral связывает партнёра с приведённым клиентом.
func (r *PartnerRepository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (partner_id, client_id, project_id, status, commission_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		referral.PartnerID, referral.ClientID, referral.ProjectID, referral.Status, referral.CommissionAmount,
	).Scan(&referral.ID, &referral.CreatedAt); err != nil {
		return fmt.Errorf("partner repository: create referral %w", err)
	}

	return nil
}

// ListReferrals возвращает рефералов партнёра.
func (r *PartnerRepository) ListReferrals(ctx context.Context, partnerID uuid.UUID) ([]models.Referral, error) {
	query := `
		SELECT id, partner_id, client_id, project_id, status, commission_amount, created_at
		FROM referrals
		WHERE partner_id = $1
		ORDER BY created_at DESC
	`

	var referrals []models.Referral
	if err := r.db.SelectContext(ctx, &referrals, query, partnerID); err != nil {
		return nil, fmt.Errorf("partner repository: list referrals %w", err)
	}

	return referrals, nil
}

// GetReferralByClient возвращает реферал по приведённому клиенту.
func (r *PartnerRepository) GetReferralByClient(ctx context.Context, clientID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	query := `
		SELECT id, partner_id, client_id, project_id, status, commission_amount, created_at
		FROM referrals
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &referral, query, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("partner repository: get referral by client %w", err)
	}

	return &referral, nil
}

// ConvertReferral отмечает реферал конвертированным и привязывает проект
// с рассчитанной комиссией.
func (r *PartnerRepository) ConvertReferral(ctx context.Context, referralID, projectID uuid.UUID, commission float64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE referrals SET status = 'converted', project_id = $1, commission_amount = $2 WHERE id = $3`,
		projectID, commission, referralID,
	)
	if err != nil {
		return fmt.Errorf("partner repository: convert referral %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("partner repository: convert referral rows affected %w", err)
	}
	if affected == 0 {
		return ErrReferralNotFound
	}

	return nil
}

// AddEarnings увеличивает накопленный заработок партнёра.
func (r *PartnerRepository) AddEarnings(ctx context.Context, partnerID uuid.UUID, amount float64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE partners SET total_earnings = total_earnings + $1 WHERE id = $2`,
		amount, partnerID,
	)
	if err != nil {
		return fmt.Errorf("partner repository: add earnings %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("partner repository: add earnings rows affected %w", err)
	}
	if affected == 0 {
		return ErrPartnerNotFound
	}

	return nil
}

// GetEarnings агрегирует заработок партнёра по рефералам.
func (r *PartnerRepository) GetEarnings(ctx context.Context, partnerID uuid.UUID) (*models.PartnerEarnings, error) {
	query := `
		SELECT
			COALESCE(SUM(commission_amount) FILTER (WHERE status = 'paid'), 0) AS total_earnings,
			COALESCE(SUM(commission_amount) FILTER (WHERE status = 'converted'), 0) AS pending_earnings,
			COUNT(*) AS referrals_count,
			COUNT(*) FILTER (WHERE status IN ('converted', 'paid')) AS converted_count
		FROM referrals
		WHERE partner_id = $1
	`

	var earnings models.PartnerEarnings
	if err := r.db.QueryRowContext(ctx, query, partnerID).Scan(
		&earnings.TotalEarnings,
		&earnings.PendingEarnings,
		&earnings.ReferralsCount,
		&earnings.ConvertedCount,
	); err != nil {
		return nil, fmt.Errorf("partner repository: get earnings %w", err)
	}

	return &earnings, nil
}
