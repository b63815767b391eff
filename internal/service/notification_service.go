package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/email"
	"github.com/softwarepar/softwarepar-backend/internal/goroutine"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/whatsapp"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// NotificationUserRepository отдаёт адреса получателя.
type NotificationUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Pusher доставляет событие в открытые WebSocket соединения пользователя.
type Pusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// EmailSender отправляет письма.
type EmailSender interface {
	IsConfigured() bool
	Send(to, subject, htmlBody string) error
}

// WhatsAppSender отправляет WhatsApp сообщения.
type WhatsAppSender interface {
	Send(ctx context.Context, toNumber, body string) error
}

// NotificationService - диспетчер уведомлений. Запись в БД обязательна:
// её ошибка возвращается вызывающему. Доставка по WebSocket, email и
// WhatsApp выполняется в фоне, и сбой одного канала не трогает остальные.
type NotificationService struct {
	repo     NotificationRepository
	users    NotificationUserRepository
	pusher   Pusher
	email    EmailSender
	whatsapp WhatsAppSender
	log      *logrus.Logger
}

// NewNotificationService создаёт диспетчер. pusher, email и whatsapp
// могут быть nil: соответствующие каналы просто не используются.
func NewNotificationService(
	repo NotificationRepository,
	users NotificationUserRepository,
	pusher Pusher,
	emailSender EmailSender,
	whatsappSender WhatsAppSender,
	log *logrus.Logger,
) *NotificationService {
	return &NotificationService{
		repo:     repo,
		users:    users,
		pusher:   pusher,
		email:    emailSender,
		whatsapp: whatsappSender,
		log:      log,
	}
}

// DispatchInput описывает уведомление и его доставку по каналам.
type DispatchInput struct {
	UserID  uuid.UUID
	Title   string
	Message string
	Type    string

	// Event - имя события для WebSocket ("stage_available",
	// "payment_received", ...). Пустое значение отключает push.
	Event string
	// Data - полезная нагрузка WebSocket события.
	Data any

	// SendEmail включает дублирование на email пользователя.
	SendEmail bool
	// WhatsAppBody - текст WhatsApp сообщения. Пустое значение
	// отключает канал.
	WhatsAppBody string
}

// Dispatch сохраняет уведомление и рассылает его по каналам.
func (s *NotificationService) Dispatch(ctx context.Context, in DispatchInput) (*models.Notification, error) {
	if in.Type == "" {
		in.Type = models.NotificationTypeInfo
	}

	notification := &models.Notification{
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	// Каналы доставки работают в фоне на отвязанном контексте:
	// завершение HTTP запроса не должно обрывать отправку.
	bg := context.WithoutCancel(ctx)

	if s.pusher != nil && in.Event != "" {
		data := in.Data
		if data == nil {
			data = notification
		}
		event := in.Event
		userID := in.UserID
		goroutine.SafeGo(func() {
			if err := s.pusher.BroadcastToUser(userID, event, data); err != nil {
				s.log.WithError(err).Warn("notification service: push не доставлен")
			}
		})
	}

	if in.SendEmail || in.WhatsAppBody != "" {
		s.deliverExternal(bg, in)
	}

	return notification, nil
}

// deliverExternal отправляет уведомление на внешние каналы получателя.
func (s *NotificationService) deliverExternal(ctx context.Context, in DispatchInput) {
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		user, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			s.log.WithError(err).Warn("notification service: получатель не найден")
			return
		}

		if in.SendEmail && s.email != nil && s.email.IsConfigured() {
			body := email.NotificationBody(in.Title, in.Message)
			if err := s.email.Send(user.Email, in.Title, body); err != nil {
				s.log.WithError(err).Warn("notification service: email не доставлен")
			}
		}

		if in.WhatsAppBody != "" && s.whatsapp != nil && user.WhatsAppNumber != nil {
			if err := s.whatsapp.Send(ctx, *user.WhatsAppNumber, in.WhatsAppBody); err != nil {
				if !errors.Is(err, whatsapp.ErrNotConfigured) {
					s.log.WithError(err).Warn("notification service: whatsapp не доставлен")
				}
			}
		}
	})
}

// ListNotifications возвращает уведомления пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListByUser(ctx, userID, onlyUnread, limit, offset)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead отмечает уведомление прочитанным.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead отмечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// DeleteNotification удаляет уведомление пользователя.
func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.Delete(ctx, id, userID)
}
