package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

type fakeProjectRepo struct {
	projects map[uuid.UUID]*models.Project
	messages []models.ProjectMessage
	files    []models.ProjectFile
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[uuid.UUID]*models.Project)}
}

func (f *fakeProjectRepo) Create(ctx context.Context, project *models.Project) error {
	project.ID = uuid.New()
	f.projects[project.ID] = project
	return nil
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

func (f *fakeProjectRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error) {
	var result []models.Project
	for _, project := range f.projects {
		if project.ClientID == clientID {
			result = append(result, *project)
		}
	}
	return result, nil
}

func (f *fakeProjectRepo) ListAll(ctx context.Context, limit, offset int) ([]models.Project, error) {
	var result []models.Project
	for _, project := range f.projects {
		result = append(result, *project)
	}
	return result, nil
}

func (f *fakeProjectRepo) Update(ctx context.Context, project *models.Project) error {
	if _, ok := f.projects[project.ID]; !ok {
		return repository.ErrProjectNotFound
	}
	copied := *project
	f.projects[project.ID] = &copied
	return nil
}

func (f *fakeProjectRepo) UpdateProgress(ctx context.Context, projectID uuid.UUID, progress int) (bool, error) {
	project, ok := f.projects[projectID]
	if !ok {
		return false, nil
	}
	project.Progress = progress
	return true, nil
}

func (f *fakeProjectRepo) Delete(ctx context.Context, projectID uuid.UUID) error {
	if _, ok := f.projects[projectID]; !ok {
		return repository.ErrProjectNotFound
	}
	delete(f.projects, projectID)
	return nil
}

func (f *fakeProjectRepo) CreateMessage(ctx context.Context, msg *models.ProjectMessage) error {
	msg.ID = uuid.New()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeProjectRepo) ListMessages(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMessage, error) {
	var result []models.ProjectMessage
	for _, msg := range f.messages {
		if msg.ProjectID == projectID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (f *fakeProjectRepo) CreateFile(ctx context.Context, file *models.ProjectFile) error {
	file.ID = uuid.New()
	f.files = append(f.files, *file)
	return nil
}

func (f *fakeProjectRepo) ListFiles(ctx context.Context, projectID uuid.UUID) ([]models.ProjectFile, error) {
	var result []models.ProjectFile
	for _, file := range f.files {
		if file.ProjectID == projectID {
			result = append(result, file)
		}
	}
	return result, nil
}

func (f *fakeProjectRepo) DeleteFile(ctx context.Context, fileID uuid.UUID) (*models.ProjectFile, error) {
	for i, file := range f.files {
		if file.ID == fileID {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return &file, nil
		}
	}
	return nil, repository.ErrProjectFileNotFound
}

type fakeTimelineRepo struct {
	items map[uuid.UUID]*models.TimelineItem
	order []uuid.UUID
}

func newFakeTimelineRepo() *fakeTimelineRepo {
	return &fakeTimelineRepo{items: make(map[uuid.UUID]*models.TimelineItem)}
}

func (f *fakeTimelineRepo) Create(ctx context.Context, item *models.TimelineItem) error {
	item.ID = uuid.New()
	f.items[item.ID] = item
	f.order = append(f.order, item.ID)
	return nil
}

func (f *fakeTimelineRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.TimelineItem, error) {
	var result []models.TimelineItem
	for _, id := range f.order {
		if f.items[id].ProjectID == projectID {
			result = append(result, *f.items[id])
		}
	}
	return result, nil
}

func (f *fakeTimelineRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.TimelineItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, repository.ErrTimelineItemNotFound
	}
	item.Status = status
	copied := *item
	return &copied, nil
}

func (f *fakeTimelineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrTimelineItemNotFound
	}
	delete(f.items, id)
	for i, ordered := range f.order {
		if ordered == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeTimelineRepo) Counts(ctx context.Context, projectID uuid.UUID) (int, int, error) {
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

type fakeUnlocker struct {
	calls []int
}

func (f *fakeUnlocker) UnlockForProgress(ctx context.Context, project *models.Project, progress int) ([]models.PaymentStage, error) {
	f.calls = append(f.calls, progress)
	return nil, nil
}

type fakeReferralConverter struct {
	converted []uuid.UUID
}

func (f *fakeReferralConverter) ConvertForProject(ctx context.Context, project *models.Project) error {
	f.converted = append(f.converted, project.ID)
	return nil
}

type fakeFileStore struct {
	deleted []string
}

func (f *fakeFileStore) Save(ctx context.Context, projectID uuid.UUID, originalName string, r io.Reader) (string, string, int64, error) {
	return projectID.String() + "/" + originalName, "application/pdf", 42, nil
}

func (f *fakeFileStore) Delete(ctx context.Context, relativePath string) error {
	f.deleted = append(f.deleted, relativePath)
	return nil
}

type projectEnv struct {
	svc      *ProjectService
	repo     *fakeProjectRepo
	timeline *fakeTimelineRepo
	unlocker *fakeUnlocker
	referral *fakeReferralConverter
	notifier *fakeDispatcher
	store    *fakeFileStore
	project  *models.Project
	clientID uuid.UUID
}

func newProjectEnv() *projectEnv {
	env := &projectEnv{
		repo:     newFakeProjectRepo(),
		timeline: newFakeTimelineRepo(),
		unlocker: &fakeUnlocker{},
		referral: &fakeReferralConverter{},
		notifier: &fakeDispatcher{},
		store:    &fakeFileStore{},
		clientID: uuid.New(),
	}

	env.svc = NewProjectService(env.repo, env.timeline, env.referral, env.notifier, env.store, logrus.New())
	env.svc.SetStageUnlocker(env.unlocker)

	env.project = &models.Project{
		Name:     "Sistema de turnos",
		Price:    1500,
		Status:   models.ProjectStatusInProgress,
		ClientID: env.clientID,
	}
	_ = env.repo.Create(context.Background(), env.project)
	return env
}

func (env *projectEnv) seedTimelineItems(t *testing.T, count int) []*models.TimelineItem {
	t.Helper()
	items := make([]*models.TimelineItem, 0, count)
	for i := 0; i < count; i++ {
		item := &models.TimelineItem{ProjectID: env.project.ID, Title: "Etapa", Status: models.TimelineStatusPending}
		assert.NoError(t, env.timeline.Create(context.Background(), item))
		items = append(items, item)
	}
	return items
}

func TestProjectService_CreateProject(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	project, err := env.svc.CreateProject(ctx, CreateProjectInput{
		Name:     "Portal inmobiliario",
		Price:    5000,
		ClientID: env.clientID,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, project.Status)
	assert.Equal(t, 0, project.Progress)

	// Реферал клиента конвертируется при создании проекта.
	assert.Equal(t, []uuid.UUID{project.ID}, env.referral.converted)
	assert.Contains(t, env.notifier.events(), "project_created")
}

func TestProjectService_CreateProject_InvalidPrice(t *testing.T) {
	env := newProjectEnv()

	_, err := env.svc.CreateProject(context.Background(), CreateProjectInput{
		Name:     "Proyecto",
		Price:    0,
		ClientID: env.clientID,
	})
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestProjectService_GetProject_AccessControl(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	_, err := env.svc.GetProject(ctx, env.project.ID, env.clientID, models.RoleClient)
	assert.NoError(t, err)

	_, err = env.svc.GetProject(ctx, env.project.ID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)

	_, err = env.svc.GetProject(ctx, env.project.ID, uuid.New(), models.RoleClient)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestProjectService_RecomputeProgress_Rounding(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	items := env.seedTimelineItems(t, 3)

	// 1 из 3 завершён: 33%.
	_, err := env.svc.UpdateTimelineStatus(ctx, items[0].ID, models.TimelineStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, 33, env.repo.projects[env.project.ID].Progress)

	// 2 из 3: 67%, округление вверх.
	_, err = env.svc.UpdateTimelineStatus(ctx, items[1].ID, models.TimelineStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, 67, env.repo.projects[env.project.ID].Progress)

	// 3 из 3: 100%.
	_, err = env.svc.UpdateTimelineStatus(ctx, items[2].ID, models.TimelineStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, 100, env.repo.projects[env.project.ID].Progress)

	// Каждый пересчёт проходил через разблокировку этапов оплаты.
	assert.Equal(t, []int{33, 67, 100}, env.unlocker.calls)
}

func TestProjectService_RecomputeProgress_EmptyTimelineNoop(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	env.repo.projects[env.project.ID].Progress = 40

	assert.NoError(t, env.svc.RecomputeProgress(ctx, env.project.ID))

	// Пустой таймлайн не сбрасывает прогресс.
	assert.Equal(t, 40, env.repo.projects[env.project.ID].Progress)
	assert.Empty(t, env.unlocker.calls)
}

func TestProjectService_RecomputeProgress_DeletedProjectDropped(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	env.seedTimelineItems(t, 2)
	delete(env.repo.projects, env.project.ID)

	// Пересчёт по удалённому проекту молча пропускается.
	assert.NoError(t, env.svc.RecomputeProgress(ctx, env.project.ID))
}

func TestProjectService_SetProgress_NotifiesOnlyOnChange(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	_, err := env.svc.SetProgress(ctx, env.project.ID, 50)
	assert.NoError(t, err)
	assert.Equal(t, []string{"project_progress"}, env.notifier.events())

	// Повторная установка того же значения не дублирует уведомление.
	_, err = env.svc.SetProgress(ctx, env.project.ID, 50)
	assert.NoError(t, err)
	assert.Equal(t, []string{"project_progress"}, env.notifier.events())

	// Разблокировка при этом выполняется всегда.
	assert.Equal(t, []int{50, 50}, env.unlocker.calls)
}

func TestProjectService_RecountOnlyOnCompletion(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	items := env.seedTimelineItems(t, 2)
	_, err := env.svc.UpdateTimelineStatus(ctx, items[0].ID, models.TimelineStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, 50, env.repo.projects[env.project.ID].Progress)

	// Возврат этапа в работу прогресс не пересчитывает.
	_, err = env.svc.UpdateTimelineStatus(ctx, items[0].ID, models.TimelineStatusInProgress)
	assert.NoError(t, err)
	assert.Equal(t, 50, env.repo.projects[env.project.ID].Progress)

	// Добавление и удаление элементов тоже его не трогают.
	added, err := env.svc.AddTimelineItem(ctx, env.project.ID, "Nueva etapa", nil)
	assert.NoError(t, err)
	assert.Equal(t, 50, env.repo.projects[env.project.ID].Progress)

	assert.NoError(t, env.svc.DeleteTimelineItem(ctx, added.ID))
	assert.Equal(t, 50, env.repo.projects[env.project.ID].Progress)

	// Разблокировка этапов оплаты выполнялась только при завершении.
	assert.Equal(t, []int{50}, env.unlocker.calls)
}

func TestProjectService_SendMessage_NotifiesClient(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	adminID := uuid.New()
	msg, err := env.svc.SendMessage(ctx, env.project.ID, adminID, models.RoleAdmin, "Avance publicado en staging")
	assert.NoError(t, err)
	assert.Equal(t, env.project.ID, msg.ProjectID)
	assert.Contains(t, env.notifier.events(), "project_message")

	// Сообщение самого клиента не уведомляет его же.
	env.notifier.dispatched = nil
	_, err = env.svc.SendMessage(ctx, env.project.ID, env.clientID, models.RoleClient, "Gracias!")
	assert.NoError(t, err)
	assert.Empty(t, env.notifier.events())
}

func TestProjectService_UploadFile(t *testing.T) {
	env := newProjectEnv()
	ctx := context.Background()

	file, err := env.svc.UploadFile(ctx, env.project.ID, env.clientID, models.RoleClient, "contrato.pdf", strings.NewReader("%PDF-1.4"))
	assert.NoError(t, err)
	assert.Equal(t, "/media/"+env.project.ID.String()+"/contrato.pdf", file.FileURL)
	assert.Equal(t, "application/pdf", file.FileType)

	files, err := env.svc.ListFiles(ctx, env.project.ID, env.clientID, models.RoleClient)
	assert.NoError(t, err)
	assert.Len(t, files, 1)

	// Удаление убирает запись и файл с диска.
	assert.NoError(t, env.svc.DeleteFile(ctx, files[0].ID))
	assert.Equal(t, []string{env.project.ID.String() + "/contrato.pdf"}, env.store.deleted)

	err = env.svc.DeleteFile(ctx, files[0].ID)
	assert.True(t, apperror.IsNotFound(err))
}
