package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы проекта
const (
	ProjectStatusPending     = "pending"
	ProjectStatusNegotiating = "negotiating"
	ProjectStatusInProgress  = "in_progress"
	ProjectStatusCompleted   = "completed"
	ProjectStatusCancelled   = "cancelled"
)

// Статусы элементов таймлайна
const (
	TimelineStatusPending    = "pending"
	TimelineStatusInProgress = "in_progress"
	TimelineStatusCompleted  = "completed"
)

// Project описывает проект разработки, заказанный клиентом.
// Проект — корневая сущность: этапы оплаты, таймлайн, переговоры,
// сообщения и файлы удаляются каскадно вместе с ним.
type Project struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Price        float64    `db:"price" json:"price"`
	Status       string     `db:"status" json:"status"`
	Progress     int        `db:"progress" json:"progress"`
	ClientID     uuid.UUID  `db:"client_id" json:"client_id"`
	PartnerID    *uuid.UUID `db:"partner_id" json:"partner_id,omitempty"`
	StartDate    *time.Time `db:"start_date" json:"start_date,omitempty"`
	DeliveryDate *time.Time `db:"delivery_date" json:"delivery_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// TimelineItem описывает один этап работ в таймлайне проекта.
// CompletedAt проставляется ровно в момент перехода в статус completed.
type TimelineItem struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ProjectID     uuid.UUID  `db:"project_id" json:"project_id"`
	Title         string     `db:"title" json:"title"`
	Description   *string    `db:"description" json:"description,omitempty"`
	Status        string     `db:"status" json:"status"`
	EstimatedDate *time.Time `db:"estimated_date" json:"estimated_date,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ProjectMessage описывает сообщение в чате проекта между клиентом и админом.
type ProjectMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProjectFile описывает файл, прикреплённый к проекту.
type ProjectFile struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProjectID  uuid.UUID `db:"project_id" json:"project_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	FileURL    string    `db:"file_url" json:"file_url"`
	FileType   string    `db:"file_type" json:"file_type"`
	UploadedBy uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
