package service

import (
	"context"
	"errors"
	"strings"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

// SettingsRepository описывает хранилище конфигураций внешних шлюзов.
type SettingsRepository interface {
	GetMercadoPago(ctx context.Context) (*models.MercadoPagoConfig, error)
	SaveMercadoPago(ctx context.Context, cfg *models.MercadoPagoConfig) error
	GetTwilio(ctx context.Context) (*models.TwilioConfig, error)
	SaveTwilio(ctx context.Context, cfg *models.TwilioConfig) error
}

// SettingsService управляет конфигурацией платёжного шлюза и WhatsApp
// канала из админ-панели. Секреты наружу отдаются маскированными.
type SettingsService struct {
	repo SettingsRepository
}

// NewSettingsService создаёт сервис настроек.
func NewSettingsService(repo SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// GetMercadoPago возвращает конфигурацию MercadoPago с маскированными
// секретами. Отсутствие конфигурации - не ошибка: возвращается nil.
func (s *SettingsService) GetMercadoPago(ctx context.Context) (*models.MercadoPagoConfig, error) {
	cfg, err := s.repo.GetMercadoPago(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGatewayConfigNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cfg.AccessToken = maskSecret(cfg.AccessToken)
	cfg.ClientSecret = maskSecret(cfg.ClientSecret)
	cfg.WebhookSecret = maskSecret(cfg.WebhookSecret)
	return cfg, nil
}

// SaveMercadoPago сохраняет конфигурацию MercadoPago.
func (s *SettingsService) SaveMercadoPago(ctx context.Context, cfg *models.MercadoPagoConfig) error {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return apperror.New(apperror.ErrCodeValidation, "access token обязателен")
	}

	return s.repo.SaveMercadoPago(ctx, cfg)
}

// GetTwilio возвращает конфигурацию Twilio с маскированным токеном.
func (s *SettingsService) GetTwilio(ctx context.Context) (*models.TwilioConfig, error) {
	cfg, err := s.repo.GetTwilio(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGatewayConfigNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cfg.AuthToken = maskSecret(cfg.AuthToken)
	return cfg, nil
}

// SaveTwilio сохраняет конфигурацию Twilio.
func (s *SettingsService) SaveTwilio(ctx context.Context, cfg *models.TwilioConfig) error {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return apperror.New(apperror.ErrCodeValidation, "account SID и auth token обязательны")
	}

	return s.repo.SaveTwilio(ctx, cfg)
}

// maskSecret оставляет видимыми только последние четыре символа.
func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
