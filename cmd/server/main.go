package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/config"
	"github.com/softwarepar/softwarepar-backend/internal/db"
	"github.com/softwarepar/softwarepar-backend/internal/email"
	httpHandlers "github.com/softwarepar/softwarepar-backend/internal/http/handlers"
	httpRouter "github.com/softwarepar/softwarepar-backend/internal/http/router"
	"github.com/softwarepar/softwarepar-backend/internal/logger"
	"github.com/softwarepar/softwarepar-backend/internal/mercadopago"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/service"
	"github.com/softwarepar/softwarepar-backend/internal/storage"
	"github.com/softwarepar/softwarepar-backend/internal/whatsapp"
	"github.com/softwarepar/softwarepar-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	fileStorage, err := storage.NewFileStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	timelineRepo := repository.NewTimelineRepository(dbConn)
	stageRepo := repository.NewStageRepository(dbConn)
	negotiationRepo := repository.NewNegotiationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	partnerRepo := repository.NewPartnerRepository(dbConn)
	ticketRepo := repository.NewTicketRepository(dbConn)
	portfolioRepo := repository.NewPortfolioRepository(dbConn)
	gatewayConfigRepo := repository.NewGatewayConfigRepository(dbConn)

	// Внешние каналы. Учётные данные шлюза и WhatsApp живут в базе и
	// перечитываются при смене версии конфигурации.
	mpClient := mercadopago.NewClient(gatewayConfigRepo, logger.Log)
	waSender := whatsapp.NewSender(gatewayConfigRepo, logger.Log)
	emailSender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, logger.Log)

	// Вебсокеты.
	hub := ws.NewHub(logger.Log)
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, userRepo, hub, emailSender, waSender, logger.Log)
	partnerService := service.NewPartnerService(partnerRepo, userRepo, notificationService, logger.Log)
	projectService := service.NewProjectService(projectRepo, timelineRepo, partnerService, notificationService, fileStorage, logger.Log)
	stageService := service.NewStageService(stageRepo, projectRepo, timelineRepo, userRepo, mpClient, partnerService, notificationService, logger.Log, cfg.BaseURL, cfg.FrontendURL)
	projectService.SetStageUnlocker(stageService)
	negotiationService := service.NewNegotiationService(negotiationRepo, projectRepo, userRepo, notificationService, logger.Log)
	ticketService := service.NewTicketService(ticketRepo, userRepo, notificationService, logger.Log)
	portfolioService := service.NewPortfolioService(portfolioRepo)
	settingsService := service.NewSettingsService(gatewayConfigRepo)
	authService := service.NewAuthService(userRepo, tokenManager, partnerService)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	projectHandler := httpHandlers.NewProjectHandler(projectService, stageService)
	stageHandler := httpHandlers.NewStageHandler(stageService)
	negotiationHandler := httpHandlers.NewNegotiationHandler(negotiationService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	ticketHandler := httpHandlers.NewTicketHandler(ticketService)
	partnerHandler := httpHandlers.NewPartnerHandler(partnerService)
	portfolioHandler := httpHandlers.NewPortfolioHandler(portfolioService)
	settingsHandler := httpHandlers.NewSettingsHandler(settingsService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, projectHandler, stageHandler, negotiationHandler, notificationHandler, ticketHandler, partnerHandler, portfolioHandler, settingsHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
