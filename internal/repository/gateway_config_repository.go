package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/models"
)

// ErrGatewayConfigNotFound возвращается, когда конфигурация шлюза
// ещё ни разу не сохранялась.
var ErrGatewayConfigNotFound = errors.New("gateway config not found")

// GatewayConfigRepository отвечает за хранение учётных данных внешних
// шлюзов: MercadoPago и Twilio. Конфигурация хранится одной строкой,
// version растёт при каждом изменении, чтобы адаптеры могли лениво
// пересобирать своих клиентов.
type GatewayConfigRepository struct {
	db *sqlx.DB
}

// NewGatewayConfigRepository создаёт экземпляр репозитория.
func NewGatewayConfigRepository(db *sqlx.DB) *GatewayConfigRepository {
	return &GatewayConfigRepository{db: db}
}

// GetMercadoPago возвращает актуальную конфигурацию MercadoPago.
func (r *GatewayConfigRepository) GetMercadoPago(ctx context.Context) (*models.MercadoPagoConfig, error) {
	var cfg models.MercadoPagoConfig
	query := `
		SELECT id, access_token, public_key, client_id, client_secret, webhook_secret, is_production, version, created_at, updated_at
		FROM mercadopago_config
		ORDER BY updated_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayConfigNotFound
		}
		return nil, fmt.Errorf("gateway config repository: get mercadopago %w", err)
	}

	return &cfg, nil
}

// SaveMercadoPago сохраняет конфигурацию MercadoPago, увеличивая версию.
// Первая запись создаёт строку, последующие обновляют её.
func (r *GatewayConfigRepository) SaveMercadoPago(ctx context.Context, cfg *models.MercadoPagoConfig) error {
	query := `
		INSERT INTO mercadopago_config (id, access_token, public_key, client_id, client_secret, webhook_secret, is_production, version)
		VALUES (COALESCE((SELECT id FROM mercadopago_config LIMIT 1), gen_random_uuid()), $1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			public_key = EXCLUDED.public_key,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			webhook_secret = EXCLUDED.webhook_secret,
			is_production = EXCLUDED.is_production,
			version = mercadopago_config.version + 1,
			updated_at = NOW()
		RETURNING id, version, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		cfg.AccessToken, cfg.PublicKey, cfg.ClientID, cfg.ClientSecret, cfg.WebhookSecret, cfg.IsProduction,
	).Scan(&cfg.ID, &cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("gateway config repository: save mercadopago %w", err)
	}

	return nil
}

// GetTwilio возвращает актуальную конфигурацию Twilio.
func (r *GatewayConfigRepository) GetTwilio(ctx context.Context) (*models.TwilioConfig, error) {
	var cfg models.TwilioConfig
	query := `
		SELECT id, account_sid, auth_token, whatsapp_number, is_production, version, created_at, updated_at
		FROM twilio_config
		ORDER BY updated_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGatewayConfigNotFound
		}
		return nil, fmt.Errorf("gateway config repository: get twilio %w", err)
	}

	return &cfg, nil
}

// SaveTwilio сохраняет конфигурацию Twilio, увеличивая версию.
func (r *GatewayConfigRepository) SaveTwilio(ctx context.Context, cfg *models.TwilioConfig) error {
	query := `
		INSERT INTO twilio_config (id, account_sid, auth_token, whatsapp_number, is_production, version)
		VALUES (COALESCE((SELECT id FROM twilio_config LIMIT 1), gen_random_uuid()), $1, $2, $3, $4, 1)
		ON CONFLICT (id) DO UPDATE
		SET account_sid = EXCLUDED.account_sid,
			auth_token = EXCLUDED.auth_token,
			whatsapp_number = EXCLUDED.whatsapp_number,
			is_production = EXCLUDED.is_production,
			version = twilio_config.version + 1,
			updated_at = NOW()
		RETURNING id, version, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		cfg.AccountSID, cfg.AuthToken, cfg.WhatsAppNumber, cfg.IsProduction,
	).Scan(&cfg.ID, &cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("gateway config repository: save twilio %w", err)
	}

	return nil
}
