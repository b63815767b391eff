package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы тикетов поддержки
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

// Приоритеты тикетов
const (
	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
	TicketPriorityUrgent = "urgent"
)

// Ticket описывает обращение в поддержку.
type Ticket struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Status      string     `db:"status" json:"status"`
	Priority    string     `db:"priority" json:"priority"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	ProjectID   *uuid.UUID `db:"project_id" json:"project_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TicketResponse описывает ответ в тикете.
type TicketResponse struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TicketID      uuid.UUID `db:"ticket_id" json:"ticket_id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Message       string    `db:"message" json:"message"`
	IsFromSupport bool      `db:"is_from_support" json:"is_from_support"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
