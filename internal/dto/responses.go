package dto

import (
	"github.com/softwarepar/softwarepar-backend/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ProjectDetailResponse represents a project with its timeline and payment stages
// This eliminates the duplicate projectDetail structs in handlers
type ProjectDetailResponse struct {
	*models.Project
	Timeline []models.TimelineItem `json:"timeline"`
	Stages   []models.PaymentStage `json:"payment_stages"`
}

// NewProjectDetailResponse creates a ProjectDetailResponse from components
func NewProjectDetailResponse(project *models.Project, timeline []models.TimelineItem, stages []models.PaymentStage) *ProjectDetailResponse {
	return &ProjectDetailResponse{
		Project:  project,
		Timeline: timeline,
		Stages:   stages,
	}
}

// TicketDetailResponse represents a ticket with its responses
type TicketDetailResponse struct {
	*models.Ticket
	Responses []models.TicketResponse `json:"responses"`
}

// PartnerDashboardResponse represents partner stats with referral history
type PartnerDashboardResponse struct {
	Partner   *models.Partner         `json:"partner"`
	Earnings  *models.PartnerEarnings `json:"earnings"`
	Referrals []models.Referral       `json:"referrals"`
}
