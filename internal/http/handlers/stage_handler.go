package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// StageHandler предоставляет HTTP слой для этапов оплаты: создание плана,
// выпуск платёжных ссылок, подтверждение оплат и вебхук MercadoPago.
type StageHandler struct {
	stages *service.StageService
}

// NewStageHandler создаёт хэндлер.
func NewStageHandler(stages *service.StageService) *StageHandler {
	return &StageHandler{stages: stages}
}

// Create обрабатывает POST /projects/:id/stages. Только администратор.
// Проценты этапов должны в сумме давать ровно 100.
func (h *StageHandler) Create(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Stages []struct {
			Name             string `json:"name" binding:"required"`
			Percentage       int    `json:"percentage" binding:"required"`
			RequiredProgress int    `json:"required_progress"`
		} `json:"stages" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	specs := make([]models.StageSpec, 0, len(req.Stages))
	for _, s := range req.Stages {
		specs = append(specs, models.StageSpec{
			Name:             s.Name,
			Percentage:       s.Percentage,
			RequiredProgress: s.RequiredProgress,
		})
	}

	stages, err := h.stages.CreateStages(c.Request.Context(), projectID, specs)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stages": stages})
}

// List обрабатывает GET /projects/:id/stages.
func (h *StageHandler) List(c *gin.Context) {
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

	stages, err := h.stages.ListStages(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// IssueLink обрабатывает POST /stages/:id/payment-link. Ссылка выпускается
// только для этапа в статусе available.
func (h *StageHandler) IssueLink(c *gin.Context) {
	stageID, err := common.ParseUUIDParam(c, "id")
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

	stage, err := h.stages.IssueLink(c.Request.Context(), stageID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, stage)
}

// ConfirmPaid обрабатывает POST /stages/:id/confirm. Только администратор,
// для оплат вне шлюза (перевод, наличные). Повторное подтверждение
// безопасно.
func (h *StageHandler) ConfirmPaid(c *gin.Context) {
	stageID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	stage, err := h.stages.ConfirmPaid(c.Request.Context(), stageID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, stage)
}

// Webhook обрабатывает POST /payments/webhook от MercadoPago. Шлюз ждёт
// 200, иначе повторяет доставку, поэтому неизвестные события
// подтверждаются без обработки.
func (h *StageHandler) Webhook(c *gin.Context) {
	var event service.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.Status(http.StatusOK)
		return
	}

	if err := h.stages.HandleWebhook(c.Request.Context(), event); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusOK)
}
