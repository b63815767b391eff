package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы этапов оплаты.
// Статус overdue объявлен в схеме, но правило перехода в него не определено:
// он зарезервирован до появления фоновой проверки сроков оплаты.
const (
	StageStatusPending   = "pending"
	StageStatusAvailable = "available"
	StageStatusPaid      = "paid"
	StageStatusOverdue   = "overdue"
)

// PaymentStage описывает один этап оплаты проекта.
// Amount фиксируется в момент создания (процент от цены проекта на тот
// момент) и не пересчитывается при последующих изменениях цены.
type PaymentStage struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ProjectID        uuid.UUID  `db:"project_id" json:"project_id"`
	StageName        string     `db:"stage_name" json:"stage_name"`
	StagePercentage  int        `db:"stage_percentage" json:"stage_percentage"`
	Amount           float64    `db:"amount" json:"amount"`
	RequiredProgress int        `db:"required_progress" json:"required_progress"`
	Status           string     `db:"status" json:"status"`
	PaymentLink      *string    `db:"payment_link" json:"payment_link,omitempty"`
	MercadoPagoID    *string    `db:"mercado_pago_id" json:"mercado_pago_id,omitempty"`
	PaidAt           *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StageSpec описывает параметры одного этапа при пакетном создании.
type StageSpec struct {
	Name             string `json:"name"`
	Percentage       int    `json:"percentage"`
	RequiredProgress int    `json:"required_progress"`
}
