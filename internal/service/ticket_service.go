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
)

// TicketServiceRepository описывает зависимости от хранилища тикетов.
type TicketServiceRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Ticket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateResponse(ctx context.Context, resp *models.TicketResponse) error
	ListResponses(ctx context.Context, ticketID uuid.UUID) ([]models.TicketResponse, error)
}

// TicketService содержит бизнес-логику поддержки.
type TicketService struct {
	repo     TicketServiceRepository
	admins   AdminFinder
	notifier Dispatcher
	log      *logrus.Logger
}

// NewTicketService создаёт сервис поддержки.
func NewTicketService(repo TicketServiceRepository, admins AdminFinder, notifier Dispatcher, log *logrus.Logger) *TicketService {
	return &TicketService{
		repo:     repo,
		admins:   admins,
		notifier: notifier,
		log:      log,
	}
}

// CreateTicketInput содержит данные нового тикета.
type CreateTicketInput struct {
	Title       string
	Description string
	Priority    string
	ProjectID   *uuid.UUID
}

// CreateTicket создаёт обращение в поддержку и уведомляет администраторов.
func (s *TicketService) CreateTicket(ctx context.Context, userID uuid.UUID, in CreateTicketInput) (*models.Ticket, error) {
	if err := validation.ValidateLength("тема обращения", in.Title, validation.MinTicketTitleLength, validation.MaxTicketTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateNonEmpty("описание", in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	priority := in.Priority
	if priority == "" {
		priority = models.TicketPriorityMedium
	}
	if !isValidTicketPriority(priority) {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый приоритет")
	}

	ticket := &models.Ticket{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.TicketStatusOpen,
		Priority:    priority,
		UserID:      userID,
		ProjectID:   in.ProjectID,
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, DispatchInput{
		Title:   "Nuevo ticket de soporte",
		Message: fmt.Sprintf("Se abrió el ticket %q con prioridad %s.", ticket.Title, ticket.Priority),
		Type:    models.NotificationTypeInfo,
		Event:   "ticket_created",
		Data:    ticket,
	})

	return ticket, nil
}

// GetTicket возвращает тикет с ответами, проверяя доступ.
func (s *TicketService) GetTicket(ctx context.Context, ticketID, actorID uuid.UUID, actorRole string) (*models.Ticket, []models.TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "обращение не найдено")
		}
		return nil, nil, err
	}

	if actorRole != models.RoleAdmin && ticket.UserID != actorID {
		return nil, nil, apperror.ErrForbidden
	}

	responses, err := s.repo.ListResponses(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	return ticket, responses, nil
}

// ListTickets возвращает тикеты, доступные пользователю.
func (s *TicketService) ListTickets(ctx context.Context, actorID uuid.UUID, actorRole string, limit, offset int) ([]models.Ticket, error) {
	if actorRole == models.RoleAdmin {
		if limit <= 0 || limit > 100 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}
		return s.repo.ListAll(ctx, limit, offset)
	}

	return s.repo.ListByUser(ctx, actorID)
}

// Respond добавляет ответ в тикет. Первый ответ поддержки переводит
// открытый тикет в работу.
func (s *TicketService) Respond(ctx context.Context, ticketID, actorID uuid.UUID, actorRole, message string) (*models.TicketResponse, error) {
	if err := validation.ValidateLength("сообщение", message, validation.MinMessageLength, validation.MaxMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	ticket, _, err := s.GetTicket(ctx, ticketID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	fromSupport := actorRole == models.RoleAdmin

	resp := &models.TicketResponse{
		TicketID:      ticketID,
		UserID:        actorID,
		Message:       message,
		IsFromSupport: fromSupport,
	}

	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		return nil, err
	}

	if fromSupport {
		if ticket.Status == models.TicketStatusOpen {
			if err := s.repo.UpdateStatus(ctx, ticketID, models.TicketStatusInProgress); err != nil {
				return nil, err
			}
		}

		_, _ = s.notifier.Dispatch(ctx, DispatchInput{
			UserID:    ticket.UserID,
			Title:     "Respuesta de soporte",
			Message:   fmt.Sprintf("Tu ticket %q tiene una nueva respuesta.", ticket.Title),
			Type:      models.NotificationTypeInfo,
			Event:     "ticket_response",
			Data:      resp,
			SendEmail: true,
		})
	} else {
		s.notifyAdmins(ctx, DispatchInput{
			Title:   "Respuesta en ticket",
			Message: fmt.Sprintf("El ticket %q tiene una nueva respuesta del cliente.", ticket.Title),
			Type:    models.NotificationTypeInfo,
			Event:   "ticket_response",
			Data:    resp,
		})
	}

	return resp, nil
}

// UpdateStatus меняет статус тикета. Доступно только поддержке.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID uuid.UUID, status string) error {
	if !isValidTicketStatus(status) {
		return apperror.New(apperror.ErrCodeValidation, "недопустимый статус обращения")
	}

	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "обращение не найдено")
		}
		return err
	}

	if err := s.repo.UpdateStatus(ctx, ticketID, status); err != nil {
		return err
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:  ticket.UserID,
		Title:   "Estado del ticket actualizado",
		Message: fmt.Sprintf("Tu ticket %q pasó al estado %s.", ticket.Title, status),
		Type:    models.NotificationTypeInfo,
		Event:   "ticket_status",
		Data:    ticket,
	})

	return nil
}

func (s *TicketService) notifyAdmins(ctx context.Context, in DispatchInput) {
	admins, err := s.admins.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.log.WithError(err).Warn("ticket service: не удалось получить администраторов")
		return
	}

	for _, admin := range admins {
		adminIn := in
		adminIn.UserID = admin.ID
		if _, err := s.notifier.Dispatch(ctx, adminIn); err != nil {
			s.log.WithError(err).Warn("ticket service: уведомление администратора не сохранено")
		}
	}
}

func isValidTicketStatus(status string) bool {
	switch status {
	case models.TicketStatusOpen, models.TicketStatusInProgress,
		models.TicketStatusResolved, models.TicketStatusClosed:
		return true
	}
	return false
}

func isValidTicketPriority(priority string) bool {
	switch priority {
	case models.TicketPriorityLow, models.TicketPriorityMedium,
		models.TicketPriorityHigh, models.TicketPriorityUrgent:
		return true
	}
	return false
}
