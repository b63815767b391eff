package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/softwarepar/softwarepar-backend/internal/config"
	"github.com/softwarepar/softwarepar-backend/internal/http/handlers"
	"github.com/softwarepar/softwarepar-backend/internal/http/middleware"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	projectHandler *handlers.ProjectHandler,
	stageHandler *handlers.StageHandler,
	negotiationHandler *handlers.NegotiationHandler,
	notificationHandler *handlers.NotificationHandler,
	ticketHandler *handlers.TicketHandler,
	partnerHandler *handlers.PartnerHandler,
	portfolioHandler *handlers.PortfolioHandler,
	settingsHandler *handlers.SettingsHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты.
	api.GET("/portfolio", portfolioHandler.ListPublic)
	api.GET("/ws", wsHandler.Handle)

	// Вебхук MercadoPago: шлюз не умеет авторизоваться, этап
	// сверяется по external_reference платежа.
	api.POST("/payments/webhook", stageHandler.Webhook)

	// Защищённые маршруты.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)

		protected.GET("/projects", projectHandler.List)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.Get)
		protected.GET("/projects/:id/timeline", middleware.UUIDValidator("id"), projectHandler.ListTimeline)
		protected.GET("/projects/:id/messages", middleware.UUIDValidator("id"), projectHandler.ListMessages)
		protected.POST("/projects/:id/messages", middleware.UUIDValidator("id"), projectHandler.SendMessage)
		protected.GET("/projects/:id/files", middleware.UUIDValidator("id"), projectHandler.ListFiles)
		protected.POST("/projects/:id/files", middleware.UUIDValidator("id"), projectHandler.UploadFile)

		protected.GET("/projects/:id/stages", middleware.UUIDValidator("id"), stageHandler.List)
		protected.POST("/stages/:id/payment-link", middleware.UUIDValidator("id"), stageHandler.IssueLink)

		protected.POST("/projects/:id/negotiations", middleware.UUIDValidator("id"), negotiationHandler.Propose)
		protected.GET("/projects/:id/negotiations", middleware.UUIDValidator("id"), negotiationHandler.List)
		protected.POST("/negotiations/:id/respond", middleware.UUIDValidator("id"), negotiationHandler.Respond)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.Delete)

		protected.POST("/tickets", ticketHandler.Create)
		protected.GET("/tickets", ticketHandler.List)
		protected.GET("/tickets/:id", middleware.UUIDValidator("id"), ticketHandler.Get)
		protected.POST("/tickets/:id/responses", middleware.UUIDValidator("id"), ticketHandler.Respond)

		protected.POST("/partners/register", partnerHandler.Register)
		protected.GET("/partners/dashboard", partnerHandler.Dashboard)
		protected.GET("/partners/earnings", partnerHandler.Earnings)
		protected.GET("/partners/referrals", partnerHandler.Referrals)
	}

	// Маршруты администратора.
	admin := api.Group("/")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/projects", projectHandler.Create)
		admin.PUT("/projects/:id", middleware.UUIDValidator("id"), projectHandler.Update)
		admin.DELETE("/projects/:id", middleware.UUIDValidator("id"), projectHandler.Delete)
		admin.PUT("/projects/:id/progress", middleware.UUIDValidator("id"), projectHandler.SetProgress)

		admin.POST("/projects/:id/timeline", middleware.UUIDValidator("id"), projectHandler.AddTimelineItem)
		admin.PUT("/timeline/:id/status", middleware.UUIDValidator("id"), projectHandler.UpdateTimelineStatus)
		admin.DELETE("/timeline/:id", middleware.UUIDValidator("id"), projectHandler.DeleteTimelineItem)
		admin.DELETE("/files/:id", middleware.UUIDValidator("id"), projectHandler.DeleteFile)

		admin.POST("/projects/:id/stages", middleware.UUIDValidator("id"), stageHandler.Create)
		admin.POST("/stages/:id/confirm", middleware.UUIDValidator("id"), stageHandler.ConfirmPaid)

		admin.PUT("/tickets/:id/status", middleware.UUIDValidator("id"), ticketHandler.UpdateStatus)

		admin.POST("/portfolio", portfolioHandler.Create)
		admin.PUT("/portfolio/:id", middleware.UUIDValidator("id"), portfolioHandler.Update)
		admin.DELETE("/portfolio/:id", middleware.UUIDValidator("id"), portfolioHandler.Delete)

		admin.GET("/settings/mercadopago", settingsHandler.GetMercadoPago)
		admin.PUT("/settings/mercadopago", settingsHandler.SaveMercadoPago)
		admin.GET("/settings/twilio", settingsHandler.GetTwilio)
		admin.PUT("/settings/twilio", settingsHandler.SaveTwilio)
	}

	return r
}
