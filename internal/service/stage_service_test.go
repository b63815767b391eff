package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/mercadopago"
	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

// ============ фейки ============

type fakeStageRepo struct {
	stages map[uuid.UUID]*models.PaymentStage
	order  []uuid.UUID
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{stages: make(map[uuid.UUID]*models.PaymentStage)}
}

func (f *fakeStageRepo) CreateBatch(ctx context.Context, stages []*models.PaymentStage) error {
	for _, stage := range stages {
		stage.ID = uuid.New()
		f.stages[stage.ID] = stage
		f.order = append(f.order, stage.ID)
	}
	return nil
}

func (f *fakeStageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentStage, error) {
	stage, ok := f.stages[id]
	if !ok {
		return nil, repository.ErrStageNotFound
	}
	copied := *stage
	return &copied, nil
}

func (f *fakeStageRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.PaymentStage, error) {
	var result []models.PaymentStage
	for _, id := range f.order {
		if f.stages[id].ProjectID == projectID {
			result = append(result, *f.stages[id])
		}
	}
	return result, nil
}

func (f *fakeStageRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	count := 0
	for _, stage := range f.stages {
		if stage.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStageRepo) UnlockReached(ctx context.Context, projectID uuid.UUID, progress int) ([]models.PaymentStage, error) {
	var unlocked []models.PaymentStage
	for _, id := range f.order {
		stage := f.stages[id]
		if stage.ProjectID == projectID && stage.Status == models.StageStatusPending && stage.RequiredProgress <= progress {
			stage.Status = models.StageStatusAvailable
			unlocked = append(unlocked, *stage)
		}
	}
	return unlocked, nil
}

func (f *fakeStageRepo) SetPaymentLink(ctx context.Context, stageID uuid.UUID, link, mercadoPagoID string) (*models.PaymentStage, error) {
	stage, ok := f.stages[stageID]
	if !ok || stage.Status != models.StageStatusAvailable {
		return nil, repository.ErrStageNotAvailable
	}
	stage.PaymentLink = &link
	stage.MercadoPagoID = &mercadoPagoID
	copied := *stage
	return &copied, nil
}

func (f *fakeStageRepo) ConfirmPaid(ctx context.Context, stageID uuid.UUID) (*models.PaymentStage, error) {
	stage, ok := f.stages[stageID]
	if !ok || stage.Status == models.StageStatusPaid {
		return nil, repository.ErrStageNotAvailable
	}
	stage.Status = models.StageStatusPaid
	copied := *stage
	return &copied, nil
}

func (f *fakeStageRepo) GetByExternalReference(ctx context.Context, externalRef string) (*models.PaymentStage, error) {
	const prefix = "stage-"
	if len(externalRef) <= len(prefix) || externalRef[:len(prefix)] != prefix {
		return nil, repository.ErrStageNotFound
	}
	id, err := uuid.Parse(externalRef[len(prefix):])
	if err != nil {
		return nil, repository.ErrStageNotFound
	}
	return f.GetByID(ctx, id)
}

type fakeProjectStore struct {
	projects map[uuid.UUID]*models.Project
}

func (f *fakeProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

func (f *fakeProjectStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	project, ok := f.projects[projectID]
	if !ok {
		return repository.ErrProjectNotFound
	}
	project.Status = status
	return nil
}

type fakeTimelineStore struct {
	items []*models.TimelineItem
}

func (f *fakeTimelineStore) CreateBatch(ctx context.Context, items []*models.TimelineItem) error {
	for _, item := range items {
		item.ID = uuid.New()
	}
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeTimelineStore) Counts(ctx context.Context, projectID uuid.UUID) (int, int, error) {
	total, completed := 0, 0
	for _, item := range f.items {
		if item.ProjectID != projectID {
			continue
		}
		total++
		if item.Status == models.TimelineStatusCompleted {
			completed++
		}
	}
	return total, completed, nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type fakeGateway struct {
	preference *mercadopago.PreferenceResponse
	payment    *mercadopago.Payment
	requests   []*mercadopago.PreferenceRequest
}

func (f *fakeGateway) CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.PreferenceResponse, error) {
	f.requests = append(f.requests, req)
	return f.preference, nil
}

func (f *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	return f.payment, nil
}

type fakeCommission struct {
	recorded []uuid.UUID
}

func (f *fakeCommission) RecordStagePaid(ctx context.Context, project *models.Project, stage *models.PaymentStage) error {
	f.recorded = append(f.recorded, stage.ID)
	return nil
}

type fakeDispatcher struct {
	dispatched []DispatchInput
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, in DispatchInput) (*models.Notification, error) {
	f.dispatched = append(f.dispatched, in)
	return &models.Notification{ID: uuid.New(), UserID: in.UserID}, nil
}

func (f *fakeDispatcher) events() []string {
	var events []string
	for _, in := range f.dispatched {
		events = append(events, in.Event)
	}
	return events
}

// ============ окружение ============

type stageEnv struct {
	svc        *StageService
	repo       *fakeStageRepo
	projects   *fakeProjectStore
	timeline   *fakeTimelineStore
	gateway    *fakeGateway
	commission *fakeCommission
	notifier   *fakeDispatcher
	project    *models.Project
	client     *models.User
}

func newStageEnv(price float64) *stageEnv {
	client := &models.User{ID: uuid.New(), Email: "cliente@softwarepar.lat", FullName: "Cliente Test", Role: models.RoleClient}
	project := &models.Project{
		ID:       uuid.New(),
		Name:     "Tienda online",
		Price:    price,
		Status:   models.ProjectStatusInProgress,
		ClientID: client.ID,
	}

	env := &stageEnv{
		repo:       newFakeStageRepo(),
		projects:   &fakeProjectStore{projects: map[uuid.UUID]*models.Project{project.ID: project}},
		timeline:   &fakeTimelineStore{},
		gateway:    &fakeGateway{preference: &mercadopago.PreferenceResponse{ID: "pref-1", InitPoint: "https://mp.test/pay/1"}},
		commission: &fakeCommission{},
		notifier:   &fakeDispatcher{},
		project:    project,
		client:     client,
	}

	users := &fakeUserStore{users: map[uuid.UUID]*models.User{client.ID: client}}
	env.svc = NewStageService(
		env.repo, env.projects, env.timeline, users,
		env.gateway, env.commission, env.notifier,
		logrus.New(), "https://api.softwarepar.lat", "https://softwarepar.lat",
	)
	return env
}

func fourStageSpecs() []models.StageSpec {
	return []models.StageSpec{
		{Name: "Anticipo", Percentage: 25, RequiredProgress: 0},
		{Name: "Avance 25%", Percentage: 25, RequiredProgress: 25},
		{Name: "Avance 50%", Percentage: 25, RequiredProgress: 50},
		{Name: "Entrega final", Percentage: 25, RequiredProgress: 100},
	}
}

// ============ тесты ============

func TestStageService_CreateStages_FreezesAmounts(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)
	assert.Len(t, stages, 4)

	for _, stage := range stages {
		assert.Equal(t, 500.0, stage.Amount)
	}

	// Нулевой порог открыт сразу, остальные ждут прогресса.
	assert.Equal(t, models.StageStatusAvailable, stages[0].Status)
	assert.Equal(t, models.StageStatusPending, stages[1].Status)
	assert.Equal(t, models.StageStatusPending, stages[2].Status)
	assert.Equal(t, models.StageStatusPending, stages[3].Status)

	// Открытый этап уведомил клиента.
	assert.Equal(t, []string{"stage_available"}, env.notifier.events())
}

func TestStageService_CreateStages_AmountNotAffectedByPriceChange(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	// Смена цены проекта не трогает зафиксированные суммы.
	env.projects.projects[env.project.ID].Price = 3000

	listed, err := env.repo.ListByProject(ctx, env.project.ID)
	assert.NoError(t, err)
	for i := range listed {
		assert.Equal(t, stages[i].Amount, listed[i].Amount)
	}
}

func TestStageService_CreateStages_SeedsEmptyTimeline(t *testing.T) {
	env := newStageEnv(1000)
	ctx := context.Background()

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	total, _, err := env.timeline.Counts(ctx, env.project.ID)
	assert.NoError(t, err)
	assert.Equal(t, len(defaultTimeline), total)
}

func TestStageService_CreateStages_KeepsFilledTimeline(t *testing.T) {
	env := newStageEnv(1000)
	ctx := context.Background()

	existing := &models.TimelineItem{ProjectID: env.project.ID, Title: "Kickoff", Status: models.TimelineStatusPending}
	assert.NoError(t, env.timeline.CreateBatch(ctx, []*models.TimelineItem{existing}))

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	total, _, err := env.timeline.Counts(ctx, env.project.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStageService_CreateStages_PercentagesMustSumTo100(t *testing.T) {
	env := newStageEnv(1000)
	ctx := context.Background()

	specs := []models.StageSpec{
		{Name: "Anticipo", Percentage: 50, RequiredProgress: 0},
		{Name: "Entrega", Percentage: 40, RequiredProgress: 100},
	}

	_, err := env.svc.CreateStages(ctx, env.project.ID, specs)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestStageService_CreateStages_SecondPlanConflicts(t *testing.T) {
	env := newStageEnv(1000)
	ctx := context.Background()

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	_, err = env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestStageService_UnlockForProgress_Idempotent(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	unlocked, err := env.svc.UnlockForProgress(ctx, env.project, 50)
	assert.NoError(t, err)
	assert.Len(t, unlocked, 2)

	// Повторный вызов с тем же прогрессом ничего не открывает.
	unlocked, err = env.svc.UnlockForProgress(ctx, env.project, 50)
	assert.NoError(t, err)
	assert.Empty(t, unlocked)

	// Откат прогресса не закрывает открытые этапы.
	unlocked, err = env.svc.UnlockForProgress(ctx, env.project, 10)
	assert.NoError(t, err)
	assert.Empty(t, unlocked)

	stages, _ := env.repo.ListByProject(ctx, env.project.ID)
	assert.Equal(t, models.StageStatusAvailable, stages[1].Status)
	assert.Equal(t, models.StageStatusAvailable, stages[2].Status)
	assert.Equal(t, models.StageStatusPending, stages[3].Status)
}

func TestStageService_UnlockForProgress_ThresholdBoundary(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	// На единицу ниже порога 25 ничего не открывается.
	unlocked, err := env.svc.UnlockForProgress(ctx, env.project, 24)
	assert.NoError(t, err)
	assert.Empty(t, unlocked)

	// Ровно на пороге этап открывается.
	unlocked, err = env.svc.UnlockForProgress(ctx, env.project, 25)
	assert.NoError(t, err)
	assert.Len(t, unlocked, 1)
	assert.Equal(t, 25, unlocked[0].RequiredProgress)

	// Сразу за порогом новых этапов нет.
	unlocked, err = env.svc.UnlockForProgress(ctx, env.project, 26)
	assert.NoError(t, err)
	assert.Empty(t, unlocked)

	stages, _ := env.repo.ListByProject(ctx, env.project.ID)
	assert.Equal(t, models.StageStatusAvailable, stages[0].Status)
	assert.Equal(t, models.StageStatusAvailable, stages[1].Status)
	assert.Equal(t, models.StageStatusPending, stages[2].Status)
	assert.Equal(t, models.StageStatusPending, stages[3].Status)
}

func TestStageService_IssueLink(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	updated, err := env.svc.IssueLink(ctx, stages[0].ID, env.client.ID, models.RoleClient)
	assert.NoError(t, err)
	assert.NotNil(t, updated.PaymentLink)
	assert.Equal(t, "https://mp.test/pay/1", *updated.PaymentLink)

	// Платёж привязан к этапу через external_reference.
	req := env.gateway.requests[0]
	assert.Equal(t, StageExternalReference(stages[0].ID), req.ExternalReference)
	assert.Equal(t, 500.0, req.Items[0].UnitPrice)
	assert.Equal(t, env.client.Email, req.Payer.Email)
}

func TestStageService_IssueLink_PendingStageRejected(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	_, err = env.svc.IssueLink(ctx, stages[1].ID, env.client.ID, models.RoleClient)
	assert.ErrorIs(t, err, apperror.ErrInvalidStageState)
}

func TestStageService_IssueLink_ForeignClientForbidden(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	_, err = env.svc.IssueLink(ctx, stages[0].ID, uuid.New(), models.RoleClient)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestStageService_ConfirmPaid_Idempotent(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)
	env.notifier.dispatched = nil

	paid, err := env.svc.ConfirmPaid(ctx, stages[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StageStatusPaid, paid.Status)

	// Повторное подтверждение возвращает этап без изменений и не
	// рассылает второе уведомление.
	again, err := env.svc.ConfirmPaid(ctx, stages[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StageStatusPaid, again.Status)

	assert.Equal(t, []string{"payment_received"}, env.notifier.events())
	assert.Len(t, env.commission.recorded, 1)
}

func TestStageService_ConfirmPaid_UnknownStage(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	_, err := env.svc.ConfirmPaid(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStageNotFound)
}

func TestStageService_ConfirmPaid_LastStageCompletesProject(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	_, err = env.svc.UnlockForProgress(ctx, env.project, 100)
	assert.NoError(t, err)

	for _, stage := range stages {
		_, err := env.svc.ConfirmPaid(ctx, stage.ID)
		assert.NoError(t, err)
	}

	assert.Equal(t, models.ProjectStatusCompleted, env.projects.projects[env.project.ID].Status)
	assert.Contains(t, env.notifier.events(), "project_completed")
}

func TestStageService_HandleWebhook_ApprovedPaymentConfirmsStage(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	stages, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	env.gateway.payment = &mercadopago.Payment{
		ID:                123,
		Status:            "approved",
		ExternalReference: StageExternalReference(stages[0].ID),
	}

	event := WebhookEvent{Type: "payment"}
	event.Data.ID = "123"

	assert.NoError(t, env.svc.HandleWebhook(ctx, event))

	stage, err := env.repo.GetByID(ctx, stages[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StageStatusPaid, stage.Status)

	// Повторная доставка того же вебхука безопасна.
	assert.NoError(t, env.svc.HandleWebhook(ctx, event))
}

func TestStageService_HandleWebhook_IgnoresUnapprovedAndUnmatched(t *testing.T) {
	env := newStageEnv(2000)
	ctx := context.Background()

	_, err := env.svc.CreateStages(ctx, env.project.ID, fourStageSpecs())
	assert.NoError(t, err)

	env.gateway.payment = &mercadopago.Payment{ID: 5, Status: "pending", ExternalReference: "stage-xxx"}
	event := WebhookEvent{Type: "payment"}
	event.Data.ID = "5"
	assert.NoError(t, env.svc.HandleWebhook(ctx, event))

	// approved платёж без сопоставимого этапа подтверждается без обработки.
	env.gateway.payment = &mercadopago.Payment{ID: 6, Status: "approved", ExternalReference: "order-42"}
	event.Data.ID = "6"
	assert.NoError(t, env.svc.HandleWebhook(ctx, event))

	// Не-платёжные события пропускаются молча.
	assert.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{Type: "plan"}))
}
