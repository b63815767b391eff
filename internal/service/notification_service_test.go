package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/models"
)

type fakeNotificationRepo struct {
	rows      []models.Notification
	createErr error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, error) {
	var result []models.Notification
	for _, n := range f.rows {
		if n.UserID != userID {
			continue
		}
		if onlyUnread && n.IsRead {
			continue
		}
		result = append(result, n)
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	for i := range f.rows {
		if f.rows[i].UserID == userID {
			f.rows[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Фоновые каналы доставки синхронизируются через каналы,
// иначе тестам нечего ждать.

type fakePusher struct {
	events chan string
	err    error
}

func (f *fakePusher) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	f.events <- event
	return f.err
}

type fakeEmailSender struct {
	configured bool
	sent       chan string
	err        error
}

func (f *fakeEmailSender) IsConfigured() bool { return f.configured }

func (f *fakeEmailSender) Send(to, subject, htmlBody string) error {
	f.sent <- to
	return f.err
}

type fakeWhatsAppSender struct {
	sent chan string
}

func (f *fakeWhatsAppSender) Send(ctx context.Context, toNumber, body string) error {
	f.sent <- toNumber
	return nil
}

func waitString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("канал доставки не сработал")
		return ""
	}
}

func assertNoDelivery(t *testing.T, ch chan string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("неожиданная доставка: %s", v)
	case <-time.After(100 * time.Millisecond):
	}
}

type notificationEnv struct {
	svc      *NotificationService
	repo     *fakeNotificationRepo
	pusher   *fakePusher
	email    *fakeEmailSender
	whatsapp *fakeWhatsAppSender
	user     *models.User
}

func newNotificationEnv() *notificationEnv {
	number := "+595981111222"
	user := &models.User{
		ID:             uuid.New(),
		Email:          "cliente@softwarepar.lat",
		FullName:       "Cliente Test",
		Role:           models.RoleClient,
		WhatsAppNumber: &number,
	}

	env := &notificationEnv{
		repo:     &fakeNotificationRepo{},
		pusher:   &fakePusher{events: make(chan string, 4)},
		email:    &fakeEmailSender{configured: true, sent: make(chan string, 4)},
		whatsapp: &fakeWhatsAppSender{sent: make(chan string, 4)},
		user:     user,
	}
	users := &fakeUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}
	env.svc = NewNotificationService(env.repo, users, env.pusher, env.email, env.whatsapp, logrus.New())
	return env
}

func TestNotificationService_Dispatch_Persists(t *testing.T) {
	env := newNotificationEnv()

	n, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID:  env.user.ID,
		Title:   "Etapa disponible",
		Message: "Ya podés abonar la primera etapa.",
	})
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, n.ID)

	// Пустой тип заменяется на info.
	assert.Equal(t, models.NotificationTypeInfo, n.Type)
	assert.Len(t, env.repo.rows, 1)
}

func TestNotificationService_Dispatch_CreateErrorPropagates(t *testing.T) {
	env := newNotificationEnv()
	env.repo.createErr = errors.New("db down")

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID: env.user.ID,
		Title:  "Etapa disponible",
		Event:  "stage_available",
	})
	assert.Error(t, err)

	// При неудачной записи каналы доставки не трогаются.
	assertNoDelivery(t, env.pusher.events)
}

func TestNotificationService_Dispatch_PushesEvent(t *testing.T) {
	env := newNotificationEnv()

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID: env.user.ID,
		Title:  "Pago recibido",
		Event:  "payment_received",
	})
	assert.NoError(t, err)
	assert.Equal(t, "payment_received", waitString(t, env.pusher.events))
}

func TestNotificationService_Dispatch_PushFailureDoesNotFail(t *testing.T) {
	env := newNotificationEnv()
	env.pusher.err = errors.New("нет активных соединений")

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID: env.user.ID,
		Title:  "Pago recibido",
		Event:  "payment_received",
	})
	assert.NoError(t, err)
	waitString(t, env.pusher.events)
}

func TestNotificationService_Dispatch_ExternalChannels(t *testing.T) {
	env := newNotificationEnv()

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID:       env.user.ID,
		Title:        "Progreso actualizado",
		Message:      "Tu proyecto alcanzó el 50%.",
		SendEmail:    true,
		WhatsAppBody: "Tu proyecto alcanzó el 50%.",
	})
	assert.NoError(t, err)

	assert.Equal(t, env.user.Email, waitString(t, env.email.sent))
	assert.Equal(t, *env.user.WhatsAppNumber, waitString(t, env.whatsapp.sent))
}

func TestNotificationService_Dispatch_EmailFailureDoesNotBlockWhatsApp(t *testing.T) {
	env := newNotificationEnv()
	env.email.err = errors.New("smtp timeout")

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID:       env.user.ID,
		Title:        "Progreso actualizado",
		SendEmail:    true,
		WhatsAppBody: "Tu proyecto alcanzó el 50%.",
	})
	assert.NoError(t, err)

	waitString(t, env.email.sent)
	waitString(t, env.whatsapp.sent)
}

func TestNotificationService_Dispatch_SkipsUnconfiguredEmail(t *testing.T) {
	env := newNotificationEnv()
	env.email.configured = false

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID:    env.user.ID,
		Title:     "Progreso actualizado",
		SendEmail: true,
	})
	assert.NoError(t, err)
	assertNoDelivery(t, env.email.sent)
}

func TestNotificationService_Dispatch_SkipsWhatsAppWithoutNumber(t *testing.T) {
	env := newNotificationEnv()
	env.user.WhatsAppNumber = nil

	_, err := env.svc.Dispatch(context.Background(), DispatchInput{
		UserID:       env.user.ID,
		Title:        "Progreso actualizado",
		WhatsAppBody: "Tu proyecto alcanzó el 50%.",
	})
	assert.NoError(t, err)
	assertNoDelivery(t, env.whatsapp.sent)
}

func TestNotificationService_ListAndRead(t *testing.T) {
	env := newNotificationEnv()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Dispatch(ctx, DispatchInput{UserID: env.user.ID, Title: "Aviso"})
		assert.NoError(t, err)
	}

	unread, err := env.svc.CountUnread(ctx, env.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, unread)

	list, err := env.svc.ListNotifications(ctx, env.user.ID, true, 2, 0)
	assert.NoError(t, err)
	assert.Len(t, list, 2)

	assert.NoError(t, env.svc.MarkRead(ctx, env.repo.rows[0].ID, env.user.ID))
	unread, err = env.svc.CountUnread(ctx, env.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, unread)

	assert.NoError(t, env.svc.MarkAllRead(ctx, env.user.ID))
	unread, err = env.svc.CountUnread(ctx, env.user.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, unread)

	// Чужое уведомление не удаляется и не читается.
	foreign := uuid.New()
	assert.NoError(t, env.svc.DeleteNotification(ctx, env.repo.rows[0].ID, foreign))
	assert.Len(t, env.repo.rows, 3)
}
