package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/validation"
	"github.com/softwarepar/softwarepar-backend/internal/whatsapp"
)

// NegotiationServiceRepository описывает зависимости от хранилища переговоров.
type NegotiationServiceRepository interface {
	Create(ctx context.Context, n *models.BudgetNegotiation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BudgetNegotiation, error)
	GetPendingByProject(ctx context.Context, projectID uuid.UUID) (*models.BudgetNegotiation, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BudgetNegotiation, error)
	Resolve(ctx context.Context, id uuid.UUID, status string) (*models.BudgetNegotiation, error)
}

// NegotiationProjectRepository - доступ к проектам из сервиса переговоров.
type NegotiationProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error
	UpdatePriceAndStatus(ctx context.Context, projectID uuid.UUID, price float64, status string) error
}

// AdminFinder отдаёт администраторов для рассылки уведомлений.
type AdminFinder interface {
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

// NegotiationService содержит бизнес-логику переговоров о бюджете:
// цепочку предложений, контрпредложений и принятие новой цены.
type NegotiationService struct {
	repo     NegotiationServiceRepository
	projects NegotiationProjectRepository
	admins   AdminFinder
	notifier Dispatcher
	log      *logrus.Logger
}

// NewNegotiationService создаёт сервис переговоров.
func NewNegotiationService(
	repo NegotiationServiceRepository,
	projects NegotiationProjectRepository,
	admins AdminFinder,
	notifier Dispatcher,
	log *logrus.Logger,
) *NegotiationService {
	return &NegotiationService{
		repo:     repo,
		projects: projects,
		admins:   admins,
		notifier: notifier,
		log:      log,
	}
}

// Propose открывает новое предложение цены по проекту. По проекту может
// быть открыто не больше одного предложения одновременно.
func (s *NegotiationService) Propose(ctx context.Context, projectID, proposerID uuid.UUID, proposerRole string, price float64, message *string) (*models.BudgetNegotiation, error) {
	if err := validation.ValidatePrice("предложенная цена", price); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if message != nil {
		if err := validation.ValidateLength("сообщение", *message, 0, validation.MaxNegotiationMsgLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}
	if proposerRole != models.RoleAdmin && project.ClientID != proposerID {
		return nil, apperror.ErrForbidden
	}

	if _, err := s.repo.GetPendingByProject(ctx, projectID); err == nil {
		return nil, apperror.ErrNegotiationPending
	} else if !errors.Is(err, repository.ErrNegotiationNotFound) {
		return nil, err
	}

	negotiation := &models.BudgetNegotiation{
		ProjectID:     projectID,
		ProposedBy:    proposerID,
		OriginalPrice: project.Price,
		ProposedPrice: price,
		Message:       message,
		Status:        models.NegotiationStatusPending,
	}

	if err := s.repo.Create(ctx, negotiation); err != nil {
		return nil, err
	}

	if project.Status == models.ProjectStatusPending {
		if err := s.projects.UpdateStatus(ctx, projectID, models.ProjectStatusNegotiating); err != nil {
			return nil, err
		}
	}

	s.notifyCounterpart(ctx, project, proposerID, DispatchInput{
		Title:        "Nueva propuesta de presupuesto",
		Message:      fmt.Sprintf("Hay una propuesta de $%.2f para el proyecto %q.", price, project.Name),
		Type:         models.NotificationTypeInfo,
		Event:        "budget_proposal",
		Data:         negotiation,
		SendEmail:    true,
		WhatsAppBody: whatsapp.BudgetProposal(project.Name, price),
	})

	return negotiation, nil
}

// RespondInput содержит ответ на предложение цены.
type RespondInput struct {
	Decision     string
	CounterPrice float64
	Message      *string
}

// Respond закрывает открытое предложение. Принятие фиксирует новую цену
// проекта и переводит его в работу. Контрпредложение закрывает текущую
// строку и открывает новую от отвечающего. Уже закрытое предложение
// отвечает ошибкой, не меняя цену повторно.
func (s *NegotiationService) Respond(ctx context.Context, negotiationID, responderID uuid.UUID, responderRole string, in RespondInput) (*models.BudgetNegotiation, error) {
	negotiation, err := s.repo.GetByID(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, repository.ErrNegotiationNotFound) {
			return nil, apperror.ErrNegotiationNotFound
		}
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, negotiation.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}
	if responderRole != models.RoleAdmin && project.ClientID != responderID {
		return nil, apperror.ErrForbidden
	}

	switch in.Decision {
	case models.NegotiationDecisionAccept:
		return s.accept(ctx, project, negotiation, responderID)
	case models.NegotiationDecisionReject:
		return s.reject(ctx, project, negotiation, responderID)
	case models.NegotiationDecisionCounter:
		return s.counter(ctx, project, negotiation, responderID, in)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимое решение по предложению")
	}
}

// ListByProject возвращает цепочку переговоров проекта с проверкой доступа.
func (s *NegotiationService) ListByProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.BudgetNegotiation, error) {
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

func (s *NegotiationService) accept(ctx context.Context, project *models.Project, n *models.BudgetNegotiation, responderID uuid.UUID) (*models.BudgetNegotiation, error) {
	resolved, err := s.repo.Resolve(ctx, n.ID, models.NegotiationStatusAccepted)
	if err != nil {
		if errors.Is(err, repository.ErrNegotiationNotPending) {
			return nil, apperror.ErrNegotiationResolved
		}
		return nil, err
	}

	// Цена проекта меняется ровно один раз: условное закрытие выше
	// гарантирует, что второй accept сюда не дойдёт.
	if err := s.projects.UpdatePriceAndStatus(ctx, project.ID, resolved.ProposedPrice, models.ProjectStatusInProgress); err != nil {
		return nil, err
	}

	s.notifyCounterpart(ctx, project, responderID, DispatchInput{
		Title:        "Propuesta aceptada",
		Message:      fmt.Sprintf("La propuesta de $%.2f para el proyecto %q fue aceptada. El proyecto pasa a desarrollo.", resolved.ProposedPrice, project.Name),
		Type:         models.NotificationTypeSuccess,
		Event:        "budget_accepted",
		Data:         resolved,
		SendEmail:    true,
		WhatsAppBody: whatsapp.BudgetResolved(project.Name, "aceptada", resolved.ProposedPrice),
	})

	return resolved, nil
}

func (s *NegotiationService) reject(ctx context.Context, project *models.Project, n *models.BudgetNegotiation, responderID uuid.UUID) (*models.BudgetNegotiation, error) {
	resolved, err := s.repo.Resolve(ctx, n.ID, models.NegotiationStatusRejected)
	if err != nil {
		if errors.Is(err, repository.ErrNegotiationNotPending) {
			return nil, apperror.ErrNegotiationResolved
		}
		return nil, err
	}

	s.notifyCounterpart(ctx, project, responderID, DispatchInput{
		Title:        "Propuesta rechazada",
		Message:      fmt.Sprintf("La propuesta de $%.2f para el proyecto %q fue rechazada.", resolved.ProposedPrice, project.Name),
		Type:         models.NotificationTypeWarning,
		Event:        "budget_rejected",
		Data:         resolved,
		SendEmail:    true,
		WhatsAppBody: whatsapp.BudgetResolved(project.Name, "rechazada", resolved.ProposedPrice),
	})

	return resolved, nil
}

func (s *NegotiationService) counter(ctx context.Context, project *models.Project, n *models.BudgetNegotiation, responderID uuid.UUID, in RespondInput) (*models.BudgetNegotiation, error) {
	if err := validation.ValidatePrice("встречная цена", in.CounterPrice); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if _, err := s.repo.Resolve(ctx, n.ID, models.NegotiationStatusCountered); err != nil {
		if errors.Is(err, repository.ErrNegotiationNotPending) {
			return nil, apperror.ErrNegotiationResolved
		}
		return nil, err
	}

	// Новая строка цепочки: исходной ценой становится закрытое
	// предложение, автором - отвечающий.
	next := &models.BudgetNegotiation{
		ProjectID:     project.ID,
		ProposedBy:    responderID,
		OriginalPrice: n.ProposedPrice,
		ProposedPrice: in.CounterPrice,
		Message:       in.Message,
		Status:        models.NegotiationStatusPending,
	}

	if err := s.repo.Create(ctx, next); err != nil {
		return nil, err
	}

	s.notifyCounterpart(ctx, project, responderID, DispatchInput{
		Title:        "Contrapropuesta recibida",
		Message:      fmt.Sprintf("Hay una contrapropuesta de $%.2f para el proyecto %q.", in.CounterPrice, project.Name),
		Type:         models.NotificationTypeInfo,
		Event:        "budget_countered",
		Data:         next,
		SendEmail:    true,
		WhatsAppBody: whatsapp.BudgetProposal(project.Name, in.CounterPrice),
	})

	return next, nil
}

// notifyCounterpart доставляет уведомление противоположной стороне
// переговоров: клиенту, если действовал администратор, и всем
// администраторам, если действовал клиент.
func (s *NegotiationService) notifyCounterpart(ctx context.Context, project *models.Project, actorID uuid.UUID, in DispatchInput) {
	if actorID != project.ClientID {
		in.UserID = project.ClientID
		if _, err := s.notifier.Dispatch(ctx, in); err != nil {
			s.log.WithError(err).Warn("negotiation service: уведомление клиента не сохранено")
		}
		return
	}

	admins, err := s.admins.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.log.WithError(err).Warn("negotiation service: не удалось получить администраторов")
		return
	}

	for _, admin := range admins {
		adminIn := in
		adminIn.UserID = admin.ID
		// Администраторам не шлём WhatsApp, только панель и email.
		adminIn.WhatsAppBody = ""
		if _, err := s.notifier.Dispatch(ctx, adminIn); err != nil {
			s.log.WithError(err).Warn("negotiation service: уведомление администратора не сохранено")
		}
	}
}
