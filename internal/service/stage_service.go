package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/mercadopago"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/validation"
	"github.com/softwarepar/softwarepar-backend/internal/whatsapp"
)

// StageServiceRepository описывает зависимости StageService от хранилища этапов.
type StageServiceRepository interface {
	CreateBatch(ctx context.Context, stages []*models.PaymentStage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentStage, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.PaymentStage, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)
	UnlockReached(ctx context.Context, projectID uuid.UUID, progress int) ([]models.PaymentStage, error)
	SetPaymentLink(ctx context.Context, stageID uuid.UUID, link, mercadoPagoID string) (*models.PaymentStage, error)
	ConfirmPaid(ctx context.Context, stageID uuid.UUID) (*models.PaymentStage, error)
	GetByExternalReference(ctx context.Context, externalRef string) (*models.PaymentStage, error)
}

// StageProjectRepository - доступ к проектам из сервиса этапов.
type StageProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error
}

// StageTimelineRepository - доступ к таймлайну для автозаполнения.
type StageTimelineRepository interface {
	CreateBatch(ctx context.Context, items []*models.TimelineItem) error
	Counts(ctx context.Context, projectID uuid.UUID) (total int, completed int, err error)
}

// PaymentGateway создаёт платёжные ссылки и запрашивает платежи.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.PreferenceResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// CommissionRecorder начисляет партнёрскую комиссию за оплаченный этап.
type CommissionRecorder interface {
	RecordStagePaid(ctx context.Context, project *models.Project, stage *models.PaymentStage) error
}

// StageService содержит бизнес-логику этапов оплаты: создание с
// фиксацией сумм, разблокировку по прогрессу, выпуск платёжных ссылок
// и подтверждение оплат.
type StageService struct {
	repo       StageServiceRepository
	projects   StageProjectRepository
	timeline   StageTimelineRepository
	users      NotificationUserRepository
	gateway    PaymentGateway
	commission CommissionRecorder
	notifier   Dispatcher
	log        *logrus.Logger

	baseURL     string
	frontendURL string
}

// NewStageService создаёт сервис этапов оплаты.
func NewStageService(
	repo StageServiceRepository,
	projects StageProjectRepository,
	timeline StageTimelineRepository,
	users NotificationUserRepository,
	gateway PaymentGateway,
	commission CommissionRecorder,
	notifier Dispatcher,
	log *logrus.Logger,
	baseURL, frontendURL string,
) *StageService {
	return &StageService{
		repo:        repo,
		projects:    projects,
		timeline:    timeline,
		users:       users,
		gateway:     gateway,
		commission:  commission,
		notifier:    notifier,
		log:         log,
		baseURL:     baseURL,
		frontendURL: frontendURL,
	}
}

// defaultTimeline - этапы работ, которыми заполняется пустой таймлайн
// при создании этапов оплаты.
var defaultTimeline = []string{
	"Análisis y planificación",
	"Diseño UI/UX",
	"Desarrollo backend",
	"Desarrollo frontend",
	"Pruebas y control de calidad",
	"Entrega y despliegue",
}

// CreateStages создаёт этапы оплаты проекта. Проценты должны в сумме
// давать ровно 100. Суммы фиксируются от текущей цены проекта и не
// пересчитываются при её изменении. Этапы с нулевым порогом сразу
// открыты для оплаты.
func (s *StageService) CreateStages(ctx context.Context, projectID uuid.UUID, specs []models.StageSpec) ([]models.PaymentStage, error) {
	if err := validateStageSpecs(specs); err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}

	existing, err := s.repo.CountByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperror.New(apperror.ErrCodeConflict, "этапы оплаты проекта уже созданы")
	}

	stages := make([]*models.PaymentStage, 0, len(specs))
	for _, spec := range specs {
		status := models.StageStatusPending
		if spec.RequiredProgress == 0 {
			status = models.StageStatusAvailable
		}

		stages = append(stages, &models.PaymentStage{
			ProjectID:        projectID,
			StageName:        spec.Name,
			StagePercentage:  spec.Percentage,
			Amount:           round2(project.Price * float64(spec.Percentage) / 100),
			RequiredProgress: spec.RequiredProgress,
			Status:           status,
		})
	}

	if err := s.repo.CreateBatch(ctx, stages); err != nil {
		return nil, err
	}

	// Пустой таймлайн заполняется стандартными этапами работ.
	if err := s.seedTimeline(ctx, projectID); err != nil {
		return nil, err
	}

	result := make([]models.PaymentStage, 0, len(stages))
	for _, stage := range stages {
		result = append(result, *stage)
		if stage.Status == models.StageStatusAvailable {
			s.notifyStageAvailable(ctx, project, stage)
		}
	}

	return result, nil
}

// ListStages возвращает этапы проекта с проверкой доступа.
func (s *StageService) ListStages(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.PaymentStage, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID {
		return nil, apperror.ErrForbidden
	}

	return s.repo.ListByProject(ctx, projectID)
}

// UnlockForProgress открывает pending этапы, чей порог достигнут,
// и уведомляет клиента о каждом. Операция идемпотентна: повторный
// вызов с тем же прогрессом ничего не открывает.
func (s *StageService) UnlockForProgress(ctx context.Context, project *models.Project, progress int) ([]models.PaymentStage, error) {
	unlocked, err := s.repo.UnlockReached(ctx, project.ID, progress)
	if err != nil {
		return nil, err
	}

	for i := range unlocked {
		s.notifyStageAvailable(ctx, project, &unlocked[i])
	}

	return unlocked, nil
}

// IssueLink выпускает платёжную ссылку MercadoPago для открытого этапа.
func (s *StageService) IssueLink(ctx context.Context, stageID, actorID uuid.UUID, actorRole string) (*models.PaymentStage, error) {
	stage, err := s.repo.GetByID(ctx, stageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotFound) {
			return nil, apperror.ErrStageNotFound
		}
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, stage.ProjectID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && project.ClientID != actorID {
		return nil, apperror.ErrForbidden
	}

	if stage.Status != models.StageStatusAvailable {
		return nil, apperror.ErrInvalidStageState
	}

	client, err := s.users.GetByID(ctx, project.ClientID)
	if err != nil {
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, &mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{{
			Title:      fmt.Sprintf("%s - %s", project.Name, stage.StageName),
			Quantity:   1,
			UnitPrice:  stage.Amount,
			CurrencyID: "USD",
		}},
		Payer: mercadopago.PreferencePayer{
			Name:  client.FullName,
			Email: client.Email,
		},
		BackURLs: mercadopago.BackURLs{
			Success: s.frontendURL + "/payment/success",
			Failure: s.frontendURL + "/payment/failure",
			Pending: s.frontendURL + "/payment/pending",
		},
		AutoReturn:        "approved",
		ExternalReference: StageExternalReference(stage.ID),
		NotificationURL:   s.baseURL + "/api/payments/webhook",
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetPaymentLink(ctx, stageID, pref.InitPoint, pref.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotAvailable) {
			return nil, apperror.ErrInvalidStageState
		}
		return nil, err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:    project.ClientID,
		Title:     "Link de pago generado",
		Message:   fmt.Sprintf("Ya podés pagar la etapa %q del proyecto %q ($%.2f).", stage.StageName, project.Name, stage.Amount),
		Type:      models.NotificationTypeInfo,
		Event:     "payment_link",
		Data:      updated,
		SendEmail: true,
	})

	return updated, nil
}

// ConfirmPaid подтверждает оплату этапа. Повторное подтверждение
// уже оплаченного этапа возвращает его без изменений: paid_at
// фиксируется только первым подтверждением.
func (s *StageService) ConfirmPaid(ctx context.Context, stageID uuid.UUID) (*models.PaymentStage, error) {
	stage, err := s.repo.ConfirmPaid(ctx, stageID)
	if err != nil {
		if errors.Is(err, repository.ErrStageNotAvailable) {
			existing, getErr := s.repo.GetByID(ctx, stageID)
			if getErr != nil {
				if errors.Is(getErr, repository.ErrStageNotFound) {
					return nil, apperror.ErrStageNotFound
				}
				return nil, getErr
			}
			if existing.Status == models.StageStatusPaid {
				return existing, nil
			}
			return nil, apperror.ErrInvalidStageState
		}
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, stage.ProjectID)
	if err != nil {
		return nil, err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:       project.ClientID,
		Title:        "Pago confirmado",
		Message:      fmt.Sprintf("Recibimos el pago de la etapa %q del proyecto %q ($%.2f).", stage.StageName, project.Name, stage.Amount),
		Type:         models.NotificationTypeSuccess,
		Event:        "payment_received",
		Data:         stage,
		SendEmail:    true,
		WhatsAppBody: whatsapp.PaymentReceived(project.Name, stage.StageName, stage.Amount),
	})

	if s.commission != nil {
		if err := s.commission.RecordStagePaid(ctx, project, stage); err != nil {
			if !errors.Is(err, repository.ErrReferralNotFound) {
				s.log.WithError(err).Warn("stage service: начисление комиссии не удалось")
			}
		}
	}

	// Оплата последнего этапа завершает проект.
	if err := s.maybeCompleteProject(ctx, project); err != nil {
		s.log.WithError(err).Warn("stage service: не удалось закрыть проект")
	}

	return stage, nil
}

// WebhookEvent - тело вебхука MercadoPago.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleWebhook обрабатывает вебхук MercadoPago: по идентификатору
// платежа запрашивается его состояние, и approved платёж подтверждает
// этап из external_reference. Повторная доставка вебхука безопасна.
func (s *StageService) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if event.Type != "payment" || event.Data.ID == "" {
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, event.Data.ID)
	if err != nil {
		return err
	}

	if payment.Status != "approved" {
		s.log.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"status":     payment.Status,
		}).Info("stage service: вебхук с неподтверждённым платежом пропущен")
		return nil
	}

	stage, err := s.repo.GetByExternalReference(ctx, payment.ExternalReference)
	if err != nil {
		// Платёж не про этап: логируем и подтверждаем получение,
		// чтобы шлюз не ретраил доставку.
		s.log.WithError(err).WithField("external_reference", payment.ExternalReference).
			Warn("stage service: вебхук не сопоставлен с этапом")
		return nil
	}

	_, err = s.ConfirmPaid(ctx, stage.ID)
	return err
}

// StageExternalReference формирует external_reference платежа для этапа.
func StageExternalReference(stageID uuid.UUID) string {
	return "stage-" + stageID.String()
}

// seedTimeline заполняет пустой таймлайн стандартными этапами работ.
func (s *StageService) seedTimeline(ctx context.Context, projectID uuid.UUID) error {
	total, _, err := s.timeline.Counts(ctx, projectID)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	items := make([]*models.TimelineItem, 0, len(defaultTimeline))
	for _, title := range defaultTimeline {
		items = append(items, &models.TimelineItem{
			ProjectID: projectID,
			Title:     title,
			Status:    models.TimelineStatusPending,
		})
	}

	return s.timeline.CreateBatch(ctx, items)
}

// maybeCompleteProject закрывает проект, когда оплачены все этапы.
func (s *StageService) maybeCompleteProject(ctx context.Context, project *models.Project) error {
	stages, err := s.repo.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		return nil
	}

	for _, stage := range stages {
		if stage.Status != models.StageStatusPaid {
			return nil
		}
	}

	if project.Status == models.ProjectStatusCompleted {
		return nil
	}

	if err := s.projects.UpdateStatus(ctx, project.ID, models.ProjectStatusCompleted); err != nil {
		return err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:    project.ClientID,
		Title:     "Proyecto completado",
		Message:   fmt.Sprintf("Todas las etapas del proyecto %q fueron pagadas. ¡Gracias!", project.Name),
		Type:      models.NotificationTypeSuccess,
		Event:     "project_completed",
		Data:      project,
		SendEmail: true,
	})

	return nil
}

// notifyStageAvailable уведомляет клиента об открытии этапа оплаты.
func (s *StageService) notifyStageAvailable(ctx context.Context, project *models.Project, stage *models.PaymentStage) {
	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:       project.ClientID,
		Title:        "Etapa de pago disponible",
		Message:      fmt.Sprintf("La etapa %q del proyecto %q ya está disponible para pagar ($%.2f).", stage.StageName, project.Name, stage.Amount),
		Type:         models.NotificationTypeInfo,
		Event:        "stage_available",
		Data:         stage,
		SendEmail:    true,
		WhatsAppBody: whatsapp.StageAvailable(project.Name, stage.StageName, stage.Amount),
	})
}

// validateStageSpecs проверяет параметры этапов: положительные проценты
// с суммой ровно 100 и пороги в диапазоне 0-100.
func validateStageSpecs(specs []models.StageSpec) error {
	if len(specs) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один этап оплаты")
	}
	if len(specs) > validation.MaxStagesPerProject {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("этапов не может быть больше %d", validation.MaxStagesPerProject))
	}

	sum := 0
	for _, spec := range specs {
		if err := validation.ValidateNonEmpty("название этапа", spec.Name); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		if spec.Percentage <= 0 || spec.Percentage > 100 {
			return apperror.New(apperror.ErrCodeValidation, "процент этапа должен быть в диапазоне от 1 до 100")
		}
		if err := validation.ValidateProgress("порог разблокировки", spec.RequiredProgress); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		sum += spec.Percentage
	}

	if sum != 100 {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("проценты этапов должны в сумме давать 100, получено %d", sum))
	}

	return nil
}

// round2 округляет сумму до центов.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
