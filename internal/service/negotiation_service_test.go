package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

type fakeNegotiationRepo struct {
	rows  map[uuid.UUID]*models.BudgetNegotiation
	order []uuid.UUID
}

func newFakeNegotiationRepo() *fakeNegotiationRepo {
	return &fakeNegotiationRepo{rows: make(map[uuid.UUID]*models.BudgetNegotiation)}
}

func (f *fakeNegotiationRepo) Create(ctx context.Context, n *models.BudgetNegotiation) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	f.rows[n.ID] = n
	f.order = append(f.order, n.ID)
	return nil
}

func (f *fakeNegotiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.BudgetNegotiation, error) {
	n, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNegotiationNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNegotiationRepo) GetPendingByProject(ctx context.Context, projectID uuid.UUID) (*models.BudgetNegotiation, error) {
	for _, id := range f.order {
		n := f.rows[id]
		if n.ProjectID == projectID && n.Status == models.NegotiationStatusPending {
			copied := *n
			return &copied, nil
		}
	}
	return nil, repository.ErrNegotiationNotFound
}

func (f *fakeNegotiationRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.BudgetNegotiation, error) {
	var result []models.BudgetNegotiation
	for _, id := range f.order {
		if f.rows[id].ProjectID == projectID {
			result = append(result, *f.rows[id])
		}
	}
	return result, nil
}

func (f *fakeNegotiationRepo) Resolve(ctx context.Context, id uuid.UUID, status string) (*models.BudgetNegotiation, error) {
	n, ok := f.rows[id]
	if !ok || n.Status != models.NegotiationStatusPending {
		return nil, repository.ErrNegotiationNotPending
	}
	n.Status = status
	now := time.Now()
	n.RespondedAt = &now
	copied := *n
	return &copied, nil
}

type fakeNegotiationProjects struct {
	projects map[uuid.UUID]*models.Project
}

func (f *fakeNegotiationProjects) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

func (f *fakeNegotiationProjects) UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	f.projects[projectID].Status = status
	return nil
}

func (f *fakeNegotiationProjects) UpdatePriceAndStatus(ctx context.Context, projectID uuid.UUID, price float64, status string) error {
	project := f.projects[projectID]
	project.Price = price
	project.Status = status
	return nil
}

type fakeAdminFinder struct {
	admins []models.User
}

func (f *fakeAdminFinder) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	return f.admins, nil
}

type negotiationEnv struct {
	svc      *NegotiationService
	repo     *fakeNegotiationRepo
	projects *fakeNegotiationProjects
	notifier *fakeDispatcher
	project  *models.Project
	clientID uuid.UUID
	adminID  uuid.UUID
}

func newNegotiationEnv(price float64) *negotiationEnv {
	clientID := uuid.New()
	adminID := uuid.New()
	project := &models.Project{
		ID:       uuid.New(),
		Name:     "App de delivery",
		Price:    price,
		Status:   models.ProjectStatusPending,
		ClientID: clientID,
	}

	env := &negotiationEnv{
		repo:     newFakeNegotiationRepo(),
		projects: &fakeNegotiationProjects{projects: map[uuid.UUID]*models.Project{project.ID: project}},
		notifier: &fakeDispatcher{},
		project:  project,
		clientID: clientID,
		adminID:  adminID,
	}
	admins := &fakeAdminFinder{admins: []models.User{{ID: adminID, Role: models.RoleAdmin}}}
	env.svc = NewNegotiationService(env.repo, env.projects, admins, env.notifier, logrus.New())
	return env
}

func TestNegotiationService_Propose(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	n, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 800, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1000.0, n.OriginalPrice)
	assert.Equal(t, 800.0, n.ProposedPrice)
	assert.Equal(t, models.NegotiationStatusPending, n.Status)

	// Проект из pending переходит в negotiating.
	assert.Equal(t, models.ProjectStatusNegotiating, env.projects.projects[env.project.ID].Status)

	// Клиентское предложение уходит администраторам без WhatsApp.
	assert.Len(t, env.notifier.dispatched, 1)
	assert.Equal(t, env.adminID, env.notifier.dispatched[0].UserID)
	assert.Empty(t, env.notifier.dispatched[0].WhatsAppBody)
}

func TestNegotiationService_Propose_SecondPendingConflicts(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	_, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 800, nil)
	assert.NoError(t, err)

	_, err = env.svc.Propose(ctx, env.project.ID, env.adminID, models.RoleAdmin, 900, nil)
	assert.ErrorIs(t, err, apperror.ErrNegotiationPending)
}

func TestNegotiationService_Accept_ChangesPriceOnce(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	n, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 800, nil)
	assert.NoError(t, err)

	resolved, err := env.svc.Respond(ctx, n.ID, env.adminID, models.RoleAdmin, RespondInput{Decision: models.NegotiationDecisionAccept})
	assert.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusAccepted, resolved.Status)
	assert.NotNil(t, resolved.RespondedAt)

	project := env.projects.projects[env.project.ID]
	assert.Equal(t, 800.0, project.Price)
	assert.Equal(t, models.ProjectStatusInProgress, project.Status)

	// Второй ответ на уже закрытое предложение не меняет цену повторно.
	_, err = env.svc.Respond(ctx, n.ID, env.adminID, models.RoleAdmin, RespondInput{Decision: models.NegotiationDecisionAccept})
	assert.ErrorIs(t, err, apperror.ErrNegotiationResolved)
	assert.Equal(t, 800.0, env.projects.projects[env.project.ID].Price)
}

func TestNegotiationService_Reject(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	n, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 800, nil)
	assert.NoError(t, err)

	resolved, err := env.svc.Respond(ctx, n.ID, env.adminID, models.RoleAdmin, RespondInput{Decision: models.NegotiationDecisionReject})
	assert.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusRejected, resolved.Status)

	// Отказ не трогает цену проекта.
	assert.Equal(t, 1000.0, env.projects.projects[env.project.ID].Price)
}

func TestNegotiationService_CounterChain(t *testing.T) {
	env := newNegotiationEnv(100)
	ctx := context.Background()

	// Клиент предлагает 80, администратор отвечает 90, клиент принимает.
	first, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 80, nil)
	assert.NoError(t, err)

	second, err := env.svc.Respond(ctx, first.ID, env.adminID, models.RoleAdmin, RespondInput{
		Decision:     models.NegotiationDecisionCounter,
		CounterPrice: 90,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusPending, second.Status)
	assert.Equal(t, 80.0, second.OriginalPrice)
	assert.Equal(t, 90.0, second.ProposedPrice)
	assert.Equal(t, env.adminID, second.ProposedBy)

	closed, err := env.repo.GetByID(ctx, first.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusCountered, closed.Status)

	accepted, err := env.svc.Respond(ctx, second.ID, env.clientID, models.RoleClient, RespondInput{Decision: models.NegotiationDecisionAccept})
	assert.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusAccepted, accepted.Status)
	assert.Equal(t, 90.0, env.projects.projects[env.project.ID].Price)

	history, err := env.svc.ListByProject(ctx, env.project.ID, env.adminID, models.RoleAdmin)
	assert.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestNegotiationService_Respond_InvalidDecision(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	n, err := env.svc.Propose(ctx, env.project.ID, env.clientID, models.RoleClient, 800, nil)
	assert.NoError(t, err)

	_, err = env.svc.Respond(ctx, n.ID, env.adminID, models.RoleAdmin, RespondInput{Decision: "maybe"})
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestNegotiationService_ForeignClientForbidden(t *testing.T) {
	env := newNegotiationEnv(1000)
	ctx := context.Background()

	_, err := env.svc.Propose(ctx, env.project.ID, uuid.New(), models.RoleClient, 800, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
