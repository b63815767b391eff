package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы рефералов
const (
	ReferralStatusPending   = "pending"
	ReferralStatusConverted = "converted"
	ReferralStatusPaid      = "paid"
)

// Partner описывает партнёра, приводящего клиентов за комиссию.
type Partner struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	ReferralCode   string    `db:"referral_code" json:"referral_code"`
	CommissionRate float64   `db:"commission_rate" json:"commission_rate"`
	TotalEarnings  float64   `db:"total_earnings" json:"total_earnings"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Referral связывает партнёра с приведённым клиентом и его проектом.
type Referral struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PartnerID        uuid.UUID  `db:"partner_id" json:"partner_id"`
	ClientID         uuid.UUID  `db:"client_id" json:"client_id"`
	ProjectID        *uuid.UUID `db:"project_id" json:"project_id,omitempty"`
	Status           string     `db:"status" json:"status"`
	CommissionAmount float64    `db:"commission_amount" json:"commission_amount"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// PartnerEarnings агрегирует заработок партнёра по оплаченным этапам.
type PartnerEarnings struct {
	TotalEarnings   float64 `json:"total_earnings"`
	PendingEarnings float64 `json:"pending_earnings"`
	ReferralsCount  int     `json:"referrals_count"`
	ConvertedCount  int     `json:"converted_count"`
}
