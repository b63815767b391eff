package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/http/handlers/common"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

// SettingsHandler предоставляет HTTP слой для настройки платёжного шлюза
// и WhatsApp канала. Все операции только для администратора.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler создаёт хэндлер.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetMercadoPago обрабатывает GET /settings/mercadopago. Секреты в ответе
// замаскированы.
func (h *SettingsHandler) GetMercadoPago(c *gin.Context) {
	cfg, err := h.settings.GetMercadoPago(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"configured": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"configured": true, "config": cfg})
}

// SaveMercadoPago обрабатывает PUT /settings/mercadopago. Сохранение
// увеличивает версию конфигурации, клиент шлюза пересобирается лениво.
func (h *SettingsHandler) SaveMercadoPago(c *gin.Context) {
	var req struct {
		AccessToken   string `json:"access_token" binding:"required"`
		PublicKey     string `json:"public_key"`
		ClientID      string `json:"client_id"`
		ClientSecret  string `json:"client_secret"`
		WebhookSecret string `json:"webhook_secret"`
		IsProduction  bool   `json:"is_production"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	err := h.settings.SaveMercadoPago(c.Request.Context(), &models.MercadoPagoConfig{
		AccessToken:   req.AccessToken,
		PublicKey:     req.PublicKey,
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		WebhookSecret: req.WebhookSecret,
		IsProduction:  req.IsProduction,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "настройки MercadoPago сохранены", nil)
}

// GetTwilio обрабатывает GET /settings/twilio.
func (h *SettingsHandler) GetTwilio(c *gin.Context) {
	cfg, err := h.settings.GetTwilio(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	if cfg == nil {
		c.JSON(http.StatusOK, gin.H{"configured": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"configured": true, "config": cfg})
}

// SaveTwilio обрабатывает PUT /settings/twilio.
func (h *SettingsHandler) SaveTwilio(c *gin.Context) {
	var req struct {
		AccountSID     string `json:"account_sid" binding:"required"`
		AuthToken      string `json:"auth_token" binding:"required"`
		WhatsAppNumber string `json:"whatsapp_number" binding:"required"`
		IsProduction   bool   `json:"is_production"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	err := h.settings.SaveTwilio(c.Request.Context(), &models.TwilioConfig{
		AccountSID:     req.AccountSID,
		AuthToken:      req.AuthToken,
		WhatsAppNumber: req.WhatsAppNumber,
		IsProduction:   req.IsProduction,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "настройки Twilio сохранены", nil)
}
