package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы переговоров о бюджете
const (
	NegotiationStatusPending   = "pending"
	NegotiationStatusAccepted  = "accepted"
	NegotiationStatusRejected  = "rejected"
	NegotiationStatusCountered = "countered"
)

// Решения по переговорам, допустимые в respond
const (
	NegotiationDecisionAccept  = "accepted"
	NegotiationDecisionReject  = "rejected"
	NegotiationDecisionCounter = "countered"
)

// BudgetNegotiation описывает одно предложение цены в цепочке переговоров.
// Контрпредложение закрывает текущую строку со статусом countered и создаёт
// новую pending строку, так что живым всегда остаётся хвост цепочки.
type BudgetNegotiation struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ProjectID     uuid.UUID  `db:"project_id" json:"project_id"`
	ProposedBy    uuid.UUID  `db:"proposed_by" json:"proposed_by"`
	OriginalPrice float64    `db:"original_price" json:"original_price"`
	ProposedPrice float64    `db:"proposed_price" json:"proposed_price"`
	Message       *string    `db:"message" json:"message,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}
