package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/softwarepar/softwarepar-backend/internal/dto"
	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// TicketHandler предоставляет HTTP слой для обращений в поддержку.
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler создаёт хэндлер.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Create обрабатывает POST /tickets.
func (h *TicketHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description" binding:"required"`
		Priority    string  `json:"priority"`
		ProjectID   *string `json:"project_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var projectID *uuid.UUID
	if req.ProjectID != nil {
		parsed, err := uuid.Parse(*req.ProjectID)
		if err != nil {
			common.RespondBadRequest(c, "неверный project_id")
			return
		}
		projectID = &parsed
	}

	ticket, err := h.tickets.CreateTicket(c.Request.Context(), userID, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ProjectID:   projectID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// Get обрабатывает GET /tickets/:id. Отдаёт обращение вместе с ответами.
func (h *TicketHandler) Get(c *gin.Context) {
	ticketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	ticket, responses, err := h.tickets.GetTicket(c.Request.Context(), ticketID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TicketDetailResponse{
		Ticket:    ticket,
		Responses: responses,
	})
}

// List обрабатывает GET /tickets. Администратор видит все обращения,
// клиент только свои.
func (h *TicketHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	limit, offset := common.GetPagination(c)

	tickets, err := h.tickets.ListTickets(c.Request.Context(), userID, role, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// Respond обрабатывает POST /tickets/:id/responses.
func (h *TicketHandler) Respond(c *gin.Context) {
	ticketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	var req struct {
		Message string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "message обязателен")
		return
	}

	response, err := h.tickets.Respond(c.Request.Context(), ticketID, userID, role, req.Message)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// UpdateStatus обрабатывает PUT /tickets/:id/status. Только администратор.
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	ticketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "status обязателен")
		return
	}

	if err := h.tickets.UpdateStatus(c.Request.Context(), ticketID, req.Status); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "статус обновлён", nil)
}
