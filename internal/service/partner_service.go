package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

// DefaultCommissionRate - стандартная партнёрская комиссия.
const DefaultCommissionRate = 0.25

// PartnerServiceRepository описывает зависимости от хранилища партнёров.
type PartnerServiceRepository interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Partner, error)
	CreateReferral(ctx context.Context, referral *models.Referral) error
	ListReferrals(ctx context.Context, partnerID uuid.UUID) ([]models.Referral, error)
	GetReferralByClient(ctx context.Context, clientID uuid.UUID) (*models.Referral, error)
	ConvertReferral(ctx context.Context, referralID, projectID uuid.UUID, commission float64) error
	AddEarnings(ctx context.Context, partnerID uuid.UUID, amount float64) error
	GetEarnings(ctx context.Context, partnerID uuid.UUID) (*models.PartnerEarnings, error)
}

// PartnerUserRepository - доступ к пользователям из сервиса партнёров.
type PartnerUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, userID uuid.UUID, role string) error
}

// PartnerService содержит бизнес-логику партнёрской программы:
// реферальные коды, конвертацию приведённых клиентов и комиссию
// с оплаченных этапов.
type PartnerService struct {
	repo     PartnerServiceRepository
	users    PartnerUserRepository
	notifier Dispatcher
	log      *logrus.Logger
}

// NewPartnerService создаёт сервис партнёров.
func NewPartnerService(repo PartnerServiceRepository, users PartnerUserRepository, notifier Dispatcher, log *logrus.Logger) *PartnerService {
	return &PartnerService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		log:      log,
	}
}

// RegisterPartner превращает пользователя в партнёра: выпускает
// реферальный код и меняет роль.
func (s *PartnerService) RegisterPartner(ctx context.Context, userID uuid.UUID) (*models.Partner, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "пользователь уже является партнёром")
	} else if !errors.Is(err, repository.ErrPartnerNotFound) {
		return nil, err
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, fmt.Errorf("partner service: генерация кода %w", err)
	}

	partner := &models.Partner{
		UserID:         userID,
		ReferralCode:   code,
		CommissionRate: DefaultCommissionRate,
	}

	if err := s.repo.Create(ctx, partner); err != nil {
		return nil, err
	}

	if err := s.users.UpdateRole(ctx, userID, models.RolePartner); err != nil {
		return nil, err
	}

	return partner, nil
}

// GetPartner возвращает партнёрский профиль пользователя.
func (s *PartnerService) GetPartner(ctx context.Context, userID uuid.UUID) (*models.Partner, error) {
	partner, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPartnerNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "партнёр не найден")
		}
		return nil, err
	}
	return partner, nil
}

// GetEarnings возвращает агрегированный заработок партнёра.
func (s *PartnerService) GetEarnings(ctx context.Context, userID uuid.UUID) (*models.PartnerEarnings, error) {
	partner, err := s.GetPartner(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.repo.GetEarnings(ctx, partner.ID)
}

// ListReferrals возвращает рефералов партнёра.
func (s *PartnerService) ListReferrals(ctx context.Context, userID uuid.UUID) ([]models.Referral, error) {
	partner, err := s.GetPartner(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.repo.ListReferrals(ctx, partner.ID)
}

// LinkReferral привязывает нового клиента к партнёру по коду.
// Вызывается при регистрации.
func (s *PartnerService) LinkReferral(ctx context.Context, referralCode string, clientID uuid.UUID) error {
	partner, err := s.repo.GetByReferralCode(ctx, referralCode)
	if err != nil {
		return err
	}

	referral := &models.Referral{
		PartnerID: partner.ID,
		ClientID:  clientID,
		Status:    models.ReferralStatusPending,
	}

	return s.repo.CreateReferral(ctx, referral)
}

// ConvertForProject конвертирует pending реферал клиента при создании
// его первого проекта и фиксирует ожидаемую комиссию.
func (s *PartnerService) ConvertForProject(ctx context.Context, project *models.Project) error {
	referral, err := s.repo.GetReferralByClient(ctx, project.ClientID)
	if err != nil {
		return err
	}
	if referral.Status != models.ReferralStatusPending {
		return nil
	}

	partner, err := s.repo.GetByID(ctx, referral.PartnerID)
	if err != nil {
		return err
	}

	commission := round2(project.Price * partner.CommissionRate)
	if err := s.repo.ConvertReferral(ctx, referral.ID, project.ID, commission); err != nil {
		return err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:    partner.UserID,
		Title:     "Referido convertido",
		Message:   fmt.Sprintf("Tu referido inició el proyecto %q. Comisión estimada: $%.2f.", project.Name, commission),
		Type:      models.NotificationTypeSuccess,
		Event:     "referral_converted",
		Data:      referral,
		SendEmail: true,
	})

	return nil
}

// RecordStagePaid начисляет партнёру комиссию с оплаченного этапа.
func (s *PartnerService) RecordStagePaid(ctx context.Context, project *models.Project, stage *models.PaymentStage) error {
	referral, err := s.repo.GetReferralByClient(ctx, project.ClientID)
	if err != nil {
		return err
	}
	if referral.Status == models.ReferralStatusPending {
		return nil
	}

	partner, err := s.repo.GetByID(ctx, referral.PartnerID)
	if err != nil {
		return err
	}

	earned := round2(stage.Amount * partner.CommissionRate)
	if err := s.repo.AddEarnings(ctx, partner.ID, earned); err != nil {
		return err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:  partner.UserID,
		Title:   "Comisión acreditada",
		Message: fmt.Sprintf("Se acreditó una comisión de $%.2f por la etapa %q del proyecto %q.", earned, stage.StageName, project.Name),
		Type:    models.NotificationTypeSuccess,
		Event:   "commission_earned",
		Data:    stage,
	})

	return nil
}

// referralCodeAlphabet без похожих символов (0/O, 1/I/l).
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateReferralCode выпускает 8-символьный реферальный код.
func generateReferralCode() (string, error) {
	code := make([]byte, 8)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
