package models

import (
	"time"

	"github.com/google/uuid"
)

// MercadoPagoConfig хранит учётные данные платёжного шлюза.
// Version увеличивается при каждом изменении: адаптер сравнивает её со
// своей закешированной версией и лениво пересобирает клиента.
type MercadoPagoConfig struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AccessToken   string    `db:"access_token" json:"access_token"`
	PublicKey     string    `db:"public_key" json:"public_key"`
	ClientID      string    `db:"client_id" json:"client_id"`
	ClientSecret  string    `db:"client_secret" json:"client_secret"`
	WebhookSecret string    `db:"webhook_secret" json:"webhook_secret"`
	IsProduction  bool      `db:"is_production" json:"is_production"`
	Version       int64     `db:"version" json:"version"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// TwilioConfig хранит учётные данные WhatsApp канала.
type TwilioConfig struct {
	ID             uuid.UUID `db:"id" json:"id"`
	AccountSID     string    `db:"account_sid" json:"account_sid"`
	AuthToken      string    `db:"auth_token" json:"auth_token"`
	WhatsAppNumber string    `db:"whatsapp_number" json:"whatsapp_number"`
	IsProduction   bool      `db:"is_production" json:"is_production"`
	Version        int64     `db:"version" json:"version"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
