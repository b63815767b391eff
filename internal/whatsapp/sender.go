package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

// ErrNotConfigured возвращается, когда Twilio не настроен: канал
// WhatsApp в этом случае молча пропускается диспетчером.
var ErrNotConfigured = errors.New("whatsapp: twilio is not configured")

// ConfigProvider отдаёт актуальную конфигурацию Twilio.
type ConfigProvider interface {
	GetTwilio(ctx context.Context) (*models.TwilioConfig, error)
}

// Sender отправляет WhatsApp сообщения через Twilio. Клиент Twilio
// пересобирается лениво при изменении версии конфигурации.
type Sender struct {
	provider ConfigProvider
	log      *logrus.Logger

	mu      sync.Mutex
	client  *twilio.RestClient
	version int64
	from    string
}

// NewSender создаёт отправителя WhatsApp.
func NewSender(provider ConfigProvider, log *logrus.Logger) *Sender {
	return &Sender{provider: provider, log: log}
}

// Send отправляет сообщение на номер получателя в формате E.164.
func (s *Sender) Send(ctx context.Context, toNumber, body string) error {
	client, from, err := s.currentClient(ctx)
	if err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom("whatsapp:" + from)
	params.SetTo("whatsapp:" + toNumber)
	params.SetBody(body)

	resp, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("whatsapp: send %w", err)
	}

	if resp.Sid != nil {
		s.log.WithFields(logrus.Fields{
			"sid": *resp.Sid,
			"to":  toNumber,
		}).Info("whatsapp: сообщение отправлено")
	}

	return nil
}

// IsConfigured сообщает, настроен ли канал WhatsApp.
func (s *Sender) IsConfigured(ctx context.Context) bool {
	_, _, err := s.currentClient(ctx)
	return err == nil
}

// currentClient возвращает клиента Twilio, пересобирая его при смене
// версии конфигурации.
func (s *Sender) currentClient(ctx context.Context) (*twilio.RestClient, string, error) {
	cfg, err := s.provider.GetTwilio(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrGatewayConfigNotFound) {
			return nil, "", ErrNotConfigured
		}
		return nil, "", err
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.WhatsAppNumber == "" {
		return nil, "", ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || s.version != cfg.Version {
		s.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		s.version = cfg.Version
		s.from = cfg.WhatsAppNumber
		s.log.WithField("version", cfg.Version).Info("whatsapp: конфигурация twilio обновлена")
	}

	return s.client, s.from, nil
}
