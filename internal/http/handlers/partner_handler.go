package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/dto"
	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// PartnerHandler предоставляет HTTP слой для партнёрской программы.
type PartnerHandler struct {
	partners *service.PartnerService
}

// NewPartnerHandler создаёт хэндлер.
func NewPartnerHandler(partners *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{partners: partners}
}

// Register обрабатывает POST /partners/register. Пользователь получает
// реферальный код и роль partner.
func (h *PartnerHandler) Register(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	partner, err := h.partners.RegisterPartner(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, partner)
}

// Dashboard обрабатывает GET /partners/dashboard. Отдаёт статистику
// партнёра вместе с историей рефералов.
func (h *PartnerHandler) Dashboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	partner, err := h.partners.GetPartner(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	earnings, err := h.partners.GetEarnings(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	referrals, err := h.partners.ListReferrals(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PartnerDashboardResponse{
		Partner:   partner,
		Earnings:  earnings,
		Referrals: referrals,
	})
}

// Earnings обрабатывает GET /partners/earnings.
func (h *PartnerHandler) Earnings(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	earnings, err := h.partners.GetEarnings(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, earnings)
}

// Referrals обрабатывает GET /partners/referrals.
func (h *PartnerHandler) Referrals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	referrals, err := h.partners.ListReferrals(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": referrals})
}
