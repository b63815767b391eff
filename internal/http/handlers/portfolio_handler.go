package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// PortfolioHandler предоставляет HTTP слой для публичного портфолио.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
}

// NewPortfolioHandler создаёт хэндлер.
func NewPortfolioHandler(portfolio *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio}
}

// ListPublic обрабатывает GET /portfolio?category=web. Публичный endpoint.
func (h *PortfolioHandler) ListPublic(c *gin.Context) {
	items, err := h.portfolio.ListPublic(c.Request.Context(), c.Query("category"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Create обрабатывает POST /portfolio. Только администратор.
func (h *PortfolioHandler) Create(c *gin.Context) {
	var req struct {
		Title        string  `json:"title" binding:"required"`
		Description  string  `json:"description" binding:"required"`
		Category     string  `json:"category" binding:"required"`
		Technologies string  `json:"technologies"`
		ImageURL     string  `json:"image_url"`
		DemoURL      *string `json:"demo_url"`
		CompletedAt  *string `json:"completed_at"`
		Featured     bool    `json:"featured"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	item := &models.PortfolioItem{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Technologies: req.Technologies,
		ImageURL:     req.ImageURL,
		DemoURL:      req.DemoURL,
		Featured:     req.Featured,
		IsActive:     true,
		CompletedAt:  time.Now(),
	}
	if req.CompletedAt != nil {
		parsed, err := time.Parse("2006-01-02", *req.CompletedAt)
		if err != nil {
			common.RespondBadRequest(c, "completed_at должен быть в формате YYYY-MM-DD")
			return
		}
		item.CompletedAt = parsed
	}

	if err := h.portfolio.CreateItem(c.Request.Context(), item); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// Update обрабатывает PUT /portfolio/:id. Только администратор.
func (h *PortfolioHandler) Update(c *gin.Context) {
	itemID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Title        string  `json:"title" binding:"required"`
		Description  string  `json:"description" binding:"required"`
		Category     string  `json:"category" binding:"required"`
		Technologies string  `json:"technologies"`
		ImageURL     string  `json:"image_url"`
		DemoURL      *string `json:"demo_url"`
		Featured     bool    `json:"featured"`
		IsActive     *bool   `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	item := &models.PortfolioItem{
		ID:           itemID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Technologies: req.Technologies,
		ImageURL:     req.ImageURL,
		DemoURL:      req.DemoURL,
		Featured:     req.Featured,
		IsActive:     true,
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := h.portfolio.UpdateItem(c.Request.Context(), item); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Delete обрабатывает DELETE /portfolio/:id. Только администратор.
func (h *PortfolioHandler) Delete(c *gin.Context) {
	itemID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.portfolio.DeleteItem(c.Request.Context(), itemID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "работа удалена из портфолио", nil)
}
