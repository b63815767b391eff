package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

const defaultBaseURL = "https://api.mercadopago.com"

// ConfigProvider отдаёт актуальную конфигурацию шлюза.
type ConfigProvider interface {
	GetMercadoPago(ctx context.Context) (*models.MercadoPagoConfig, error)
}

// Client - REST клиент MercadoPago. Учётные данные перечитываются из БД
// на каждом запросе: после смены конфигурации через админ-панель клиент
// подхватывает новый токен сразу, без перезапуска сервиса. Смена версии
// конфигурации отмечается в логе.
type Client struct {
	provider ConfigProvider
	http     *http.Client
	log      *logrus.Logger
	baseURL  string

	mu          sync.Mutex
	lastVersion int64
}

// NewClient создаёт клиента MercadoPago.
func NewClient(provider ConfigProvider, log *logrus.Logger) *Client {
	return &Client{
		provider: provider,
		http:     &http.Client{Timeout: 5 * time.Second},
		log:      log,
		baseURL:  defaultBaseURL,
	}
}

// SetBaseURL переопределяет адрес API (для тестов).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// PreferenceItem - одна позиция в платёжной ссылке.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// PreferencePayer - плательщик.
type PreferencePayer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BackURLs - адреса возврата после оплаты.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest - запрос на создание checkout preference.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	Payer             PreferencePayer  `json:"payer"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url"`
}

// PreferenceResponse - ответ на создание preference.
type PreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment - платёж MercadoPago, запрашиваемый при обработке вебхука.
type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
}

// CreatePreference создаёт платёжную ссылку.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*PreferenceResponse, error) {
	cfg, err := c.currentConfig(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: marshal preference %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Error("mercadopago: создание preference отклонено")
		return nil, apperror.New(apperror.ErrCodeGateway, "платёжный шлюз отклонил запрос")
	}

	var pref PreferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pref); err != nil {
		return nil, fmt.Errorf("mercadopago: decode preference %w", err)
	}

	return &pref, nil
}

// GetPayment запрашивает платёж по идентификатору из вебхука.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	cfg, err := c.currentConfig(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.New(apperror.ErrCodeGateway, fmt.Sprintf("платёжный шлюз вернул статус %d", resp.StatusCode))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("mercadopago: decode payment %w", err)
	}

	return &payment, nil
}

// IsConfigured сообщает, настроен ли шлюз.
func (c *Client) IsConfigured(ctx context.Context) bool {
	_, err := c.currentConfig(ctx)
	return err == nil
}

// currentConfig возвращает актуальную конфигурацию шлюза.
func (c *Client) currentConfig(ctx context.Context) (*models.MercadoPagoConfig, error) {
	cfg, err := c.provider.GetMercadoPago(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGatewayConfigNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotConfigured, "платёжный шлюз не настроен")
		}
		return nil, err
	}
	if cfg.AccessToken == "" {
		return nil, apperror.New(apperror.ErrCodeNotConfigured, "платёжный шлюз не настроен")
	}

	c.mu.Lock()
	if c.lastVersion != cfg.Version {
		c.lastVersion = cfg.Version
		c.log.WithField("version", cfg.Version).Info("mercadopago: конфигурация обновлена")
	}
	c.mu.Unlock()

	return cfg, nil
}
