package models

import (
	"time"

	"github.com/google/uuid"
)

// PortfolioItem описывает работу в публичном портфолио студии.
type PortfolioItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Category     string    `db:"category" json:"category"`
	Technologies string    `db:"technologies" json:"technologies"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	DemoURL      *string   `db:"demo_url" json:"demo_url,omitempty"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
	Featured     bool      `db:"featured" json:"featured"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
