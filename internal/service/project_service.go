package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/validation"
	"github.com/softwarepar/softwarepar-backend/internal/whatsapp"
)

// Dispatcher доставляет уведомления пользователям по всем каналам.
type Dispatcher interface {
	Dispatch(ctx context.Context, in DispatchInput) (*models.Notification, error)
}

// ProjectServiceRepository описывает зависимости ProjectService от хранилища проектов.
type ProjectServiceRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	UpdateProgress(ctx context.Context, projectID uuid.UUID, progress int) (bool, error)
	Delete(ctx context.Context, projectID uuid.UUID) error
	CreateMessage(ctx context.Context, msg *models.ProjectMessage) error
	ListMessages(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMessage, error)
	CreateFile(ctx context.Context, file *models.ProjectFile) error
	ListFiles(ctx context.Context, projectID uuid.UUID) ([]models.ProjectFile, error)
	DeleteFile(ctx context.Context, fileID uuid.UUID) (*models.ProjectFile, error)
}

// TimelineServiceRepository описывает зависимости от хранилища таймлайна.
type TimelineServiceRepository interface {
	Create(ctx context.Context, item *models.TimelineItem) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.TimelineItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.TimelineItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Counts(ctx context.Context, projectID uuid.UUID) (total int, completed int, err error)
}

// StageUnlocker открывает этапы оплаты, чей порог достигнут прогрессом.
// Реализуется StageService.
type StageUnlocker interface {
	UnlockForProgress(ctx context.Context, project *models.Project, progress int) ([]models.PaymentStage, error)
}

// ReferralConverter конвертирует реферал при создании проекта.
type ReferralConverter interface {
	ConvertForProject(ctx context.Context, project *models.Project) error
}

// FileStore сохраняет и удаляет файлы проектов в хранилище.
type FileStore interface {
	Save(ctx context.Context, projectID uuid.UUID, originalName string, r io.Reader) (relativePath, mimeType string, size int64, err error)
	Delete(ctx context.Context, relativePath string) error
}

// ProjectService содержит бизнес-логику проектов: жизненный цикл,
// таймлайн, прогресс, чат и файлы.
type ProjectService struct {
	repo     ProjectServiceRepository
	timeline TimelineServiceRepository
	unlocker StageUnlocker
	referral ReferralConverter
	notifier Dispatcher
	files    FileStore
	log      *logrus.Logger
}

// NewProjectService создаёт сервис проектов. unlocker подключается
// позже через SetStageUnlocker: сервис этапов сам зависит от проектов.
func NewProjectService(
	repo ProjectServiceRepository,
	timeline TimelineServiceRepository,
	referral ReferralConverter,
	notifier Dispatcher,
	files FileStore,
	log *logrus.Logger,
) *ProjectService {
	return &ProjectService{
		repo:     repo,
		timeline: timeline,
		referral: referral,
		notifier: notifier,
		files:    files,
		log:      log,
	}
}

// SetStageUnlocker подключает сервис этапов оплаты.
func (s *ProjectService) SetStageUnlocker(unlocker StageUnlocker) {
	s.unlocker = unlocker
}

// CreateProjectInput содержит данные нового проекта.
type CreateProjectInput struct {
	Name        string
	Description *string
	Price       float64
	ClientID    uuid.UUID
}

// CreateProject создаёт проект для клиента. Доступно только администратору.
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	if err := validation.ValidateLength("название проекта", in.Name, validation.MinProjectNameLength, validation.MaxProjectNameLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePrice("цена проекта", in.Price); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	project := &models.Project{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Status:      models.ProjectStatusPending,
		Progress:    0,
		ClientID:    in.ClientID,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	// Конвертация реферала не должна ломать создание проекта.
	if s.referral != nil {
		if err := s.referral.ConvertForProject(ctx, project); err != nil {
			if !errors.Is(err, repository.ErrReferralNotFound) {
				s.log.WithError(err).Warn("project service: конвертация реферала не удалась")
			}
		}
	}

	_, _ = s.notifier.Dispatch(ctx, DispatchInput{
		UserID:    project.ClientID,
		Title:     "Nuevo proyecto creado",
		Message:   fmt.Sprintf("Tu proyecto %q fue dado de alta. Precio inicial: $%.2f.", project.Name, project.Price),
		Type:      models.NotificationTypeInfo,
		Event:     "project_created",
		Data:      project,
		SendEmail: true,
	})

	return project, nil
}

// GetProject возвращает проект с проверкой доступа: клиент видит только
// свои проекты, администратор - все.
func (s *ProjectService) GetProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}

	if actorRole != models.RoleAdmin && project.ClientID != actorID {
		return nil, apperror.ErrForbidden
	}

	return project, nil
}

// ListProjects возвращает проекты, доступные пользователю.
func (s *ProjectService) ListProjects(ctx context.Context, actorID uuid.UUID, actorRole string, limit, offset int) ([]models.Project, error) {
	if actorRole == models.RoleAdmin {
		if limit <= 0 || limit > 100 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}
		return s.repo.ListAll(ctx, limit, offset)
	}

	return s.repo.ListByClient(ctx, actorID)
}

// UpdateProjectInput содержит изменяемые поля проекта.
type UpdateProjectInput struct {
	Name         *string
	Description  *string
	Status       *string
	StartDate    *string
	DeliveryDate *string
}

// UpdateProject обновляет проект. Доступно только администратору.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID uuid.UUID, in UpdateProjectInput) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}

	if in.Name != nil {
		if err := validation.ValidateLength("название проекта", *in.Name, validation.MinProjectNameLength, validation.MaxProjectNameLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		project.Name = *in.Name
	}
	if in.Description != nil {
		project.Description = in.Description
	}
	if in.Status != nil {
		if !isValidProjectStatus(*in.Status) {
			return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус проекта")
		}
		project.Status = *in.Status
	}
	if in.StartDate != nil {
		parsed, err := parseProjectDate(*in.StartDate)
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "дата старта должна быть в формате YYYY-MM-DD")
		}
		project.StartDate = parsed
	}
	if in.DeliveryDate != nil {
		parsed, err := parseProjectDate(*in.DeliveryDate)
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "дата сдачи должна быть в формате YYYY-MM-DD")
		}
		project.DeliveryDate = parsed
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// DeleteProject удаляет проект со всеми связанными данными.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	if err := s.repo.Delete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return apperror.ErrProjectNotFound
		}
		return err
	}
	return nil
}

// AddTimelineItem добавляет этап работ в таймлайн. Прогресс проекта
// при этом не пересчитывается: он меняется только при завершении этапа.
func (s *ProjectService) AddTimelineItem(ctx context.Context, projectID uuid.UUID, title string, description *string) (*models.TimelineItem, error) {
	if err := validation.ValidateNonEmpty("название этапа", title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}

	item := &models.TimelineItem{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      models.TimelineStatusPending,
	}

	if err := s.timeline.Create(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// ListTimeline возвращает таймлайн проекта с проверкой доступа.
func (s *ProjectService) ListTimeline(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.TimelineItem, error) {
	if _, err := s.GetProject(ctx, projectID, actorID, actorRole); err != nil {
		return nil, err
	}

	return s.timeline.ListByProject(ctx, projectID)
}

// UpdateTimelineStatus меняет статус элемента таймлайна. Переход в
// completed пересчитывает прогресс проекта и открывает достигнутые
// этапы оплаты; остальные переходы прогресс не трогают.
func (s *ProjectService) UpdateTimelineStatus(ctx context.Context, itemID uuid.UUID, status string) (*models.TimelineItem, error) {
	if !isValidTimelineStatus(status) {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус этапа работ")
	}

	item, err := s.timeline.UpdateStatus(ctx, itemID, status)
	if err != nil {
		if errors.Is(err, repository.ErrTimelineItemNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "этап работ не найден")
		}
		return nil, err
	}

	if status == models.TimelineStatusCompleted {
		if err := s.RecomputeProgress(ctx, item.ProjectID); err != nil {
			return nil, err
		}
	}

	return item, nil
}

// DeleteTimelineItem удаляет элемент таймлайна. Прогресс проекта
// остаётся прежним до следующего завершения этапа.
func (s *ProjectService) DeleteTimelineItem(ctx context.Context, itemID uuid.UUID) error {
	if err := s.timeline.Delete(ctx, itemID); err != nil {
		if errors.Is(err, repository.ErrTimelineItemNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "этап работ не найден")
		}
		return err
	}

	return nil
}

// SetProgress выставляет прогресс проекта вручную. Используется
// администратором, когда таймлайн не ведётся.
func (s *ProjectService) SetProgress(ctx context.Context, projectID uuid.UUID, progress int) (*models.Project, error) {
	if err := validation.ValidateProgress("прогресс", progress); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, err
	}

	if err := s.applyProgress(ctx, project, progress); err != nil {
		return nil, err
	}

	return project, nil
}

// RecomputeProgress пересчитывает прогресс проекта из таймлайна:
// округлённая доля завершённых элементов. Пустой таймлайн прогресс
// не трогает.
func (s *ProjectService) RecomputeProgress(ctx context.Context, projectID uuid.UUID) error {
	total, completed, err := s.timeline.Counts(ctx, projectID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	progress := int(math.Round(float64(completed) / float64(total) * 100))

	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			// Проект удалён между пересчётом и записью: пропускаем.
			return nil
		}
		return err
	}

	return s.applyProgress(ctx, project, progress)
}

// applyProgress записывает прогресс, открывает достигнутые этапы оплаты
// и уведомляет клиента.
func (s *ProjectService) applyProgress(ctx context.Context, project *models.Project, progress int) error {
	changed := project.Progress != progress

	ok, err := s.repo.UpdateProgress(ctx, project.ID, progress)
	if err != nil {
		return err
	}
	if !ok {
		s.log.WithField("project_id", project.ID).Info("project service: запись прогресса отброшена, проект удалён")
		return nil
	}
	project.Progress = progress

	if s.unlocker != nil {
		if _, err := s.unlocker.UnlockForProgress(ctx, project, progress); err != nil {
			return err
		}
	}

	if changed {
		_, _ = s.notifier.Dispatch(ctx, DispatchInput{
			UserID:       project.ClientID,
			Title:        "Progreso actualizado",
			Message:      fmt.Sprintf("El proyecto %q alcanzó el %d%% de progreso.", project.Name, progress),
			Type:         models.NotificationTypeInfo,
			Event:        "project_progress",
			Data:         project,
			WhatsAppBody: whatsapp.ProjectProgress(project.Name, progress),
		})
	}

	return nil
}

// SendMessage сохраняет сообщение в чате проекта.
func (s *ProjectService) SendMessage(ctx context.Context, projectID, senderID uuid.UUID, senderRole, text string) (*models.ProjectMessage, error) {
	if err := validation.ValidateLength("сообщение", text, validation.MinMessageLength, validation.MaxMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.GetProject(ctx, projectID, senderID, senderRole)
	if err != nil {
		return nil, err
	}

	msg := &models.ProjectMessage{
		ProjectID: projectID,
		UserID:    senderID,
		Message:   text,
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	// Сообщение от студии дублируется клиенту уведомлением.
	if senderID != project.ClientID {
		_, _ = s.notifier.Dispatch(ctx, DispatchInput{
			UserID:  project.ClientID,
			Title:   "Nuevo mensaje",
			Message: fmt.Sprintf("Tenés un nuevo mensaje en el proyecto %q.", project.Name),
			Type:    models.NotificationTypeInfo,
			Event:   "project_message",
			Data:    msg,
		})
	}

	return msg, nil
}

// ListMessages возвращает чат проекта с проверкой доступа.
func (s *ProjectService) ListMessages(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.ProjectMessage, error) {
	if _, err := s.GetProject(ctx, projectID, actorID, actorRole); err != nil {
		return nil, err
	}

	return s.repo.ListMessages(ctx, projectID)
}

// UploadFile сохраняет файл проекта в хранилище и регистрирует его.
func (s *ProjectService) UploadFile(ctx context.Context, projectID, actorID uuid.UUID, actorRole, fileName string, r io.Reader) (*models.ProjectFile, error) {
	if _, err := s.GetProject(ctx, projectID, actorID, actorRole); err != nil {
		return nil, err
	}

	relPath, mimeType, _, err := s.files.Save(ctx, projectID, fileName, r)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось сохранить файл")
	}

	file := &models.ProjectFile{
		ProjectID:  projectID,
		FileName:   fileName,
		FileURL:    "/media/" + relPath,
		FileType:   mimeType,
		UploadedBy: actorID,
	}

	if err := s.repo.CreateFile(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// ListFiles возвращает файлы проекта с проверкой доступа.
func (s *ProjectService) ListFiles(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.ProjectFile, error) {
	if _, err := s.GetProject(ctx, projectID, actorID, actorRole); err != nil {
		return nil, err
	}

	return s.repo.ListFiles(ctx, projectID)
}

// DeleteFile удаляет файл проекта: сначала запись, затем файл с диска.
// Ошибка удаления с диска только логируется, запись уже удалена.
func (s *ProjectService) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	file, err := s.repo.DeleteFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectFileNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "файл проекта не найден")
		}
		return err
	}

	relPath := strings.TrimPrefix(file.FileURL, "/media/")
	if err := s.files.Delete(ctx, relPath); err != nil {
		s.log.WithError(err).WithField("file_id", fileID).Warn("project service: файл не удалён с диска")
	}

	return nil
}

// parseProjectDate разбирает дату вида 2025-03-01. Пустая строка
// сбрасывает дату.
func parseProjectDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func isValidProjectStatus(status string) bool {
	switch status {
	case models.ProjectStatusPending, models.ProjectStatusNegotiating,
		models.ProjectStatusInProgress, models.ProjectStatusCompleted,
		models.ProjectStatusCancelled:
		return true
	}
	return false
}

func isValidTimelineStatus(status string) bool {
	switch status {
	case models.TimelineStatusPending, models.TimelineStatusInProgress, models.TimelineStatusCompleted:
		return true
	}
	return false
}
