package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// NegotiationHandler предоставляет HTTP слой для переговоров по бюджету.
type NegotiationHandler struct {
	negotiations *service.NegotiationService
}

// NewNegotiationHandler создаёт хэндлер.
func NewNegotiationHandler(negotiations *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiations: negotiations}
}

// Propose обрабатывает POST /projects/:id/negotiations. По проекту может
// быть только одно открытое предложение.
func (h *NegotiationHandler) Propose(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
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
		Price   float64 `json:"price" binding:"required,gt=0"`
		Message *string `json:"message"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	negotiation, err := h.negotiations.Propose(c.Request.Context(), projectID, userID, role, req.Price, req.Message)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, negotiation)
}

// Respond обрабатывает POST /negotiations/:id/respond. Решение accepted
// фиксирует новую цену проекта, countered открывает встречное предложение.
func (h *NegotiationHandler) Respond(c *gin.Context) {
	negotiationID, err := common.ParseUUIDParam(c, "id")
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
		Decision     string  `json:"decision" binding:"required"`
		CounterPrice float64 `json:"counter_price"`
		Message      *string `json:"message"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	negotiation, err := h.negotiations.Respond(c.Request.Context(), negotiationID, userID, role, service.RespondInput{
		Decision:     req.Decision,
		CounterPrice: req.CounterPrice,
		Message:      req.Message,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, negotiation)
}

// List обрабатывает GET /projects/:id/negotiations.
func (h *NegotiationHandler) List(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
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

	negotiations, err := h.negotiations.ListByProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"negotiations": negotiations})
}
