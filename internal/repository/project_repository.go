package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/softwarepar/softwarepar-backend/internal/models"
)

// ErrProjectNotFound возвращается, когда проект не найден.
var ErrProjectNotFound = errors.New("project not found")

// ErrProjectFileNotFound возвращается, когда файл проекта не найден.
var ErrProjectFileNotFound = errors.New("project file not found")

// ProjectRepository отвечает за работу с таблицами projects,
// project_messages и project_files.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создаёт экземпляр репозитория.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create создаёт новый проект.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (name, description, price, status, progress, client_id, partner_id, start_date, delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		project.Name, project.Description, project.Price, project.Status, project.Progress,
		project.ClientID, project.PartnerID, project.StartDate, project.DeliveryDate,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: create %w", err)
	}

	return nil
}

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	query := `
		SELECT id, name, description, price, status, progress, client_id, partner_id, start_date, delivery_date, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project repository: get by id %w", err)
	}

	return &project, nil
}

// ListByClient возвращает проекты клиента.
func (r *ProjectRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error) {
	query := `
		SELECT id, name, description, price, status, progress, client_id, partner_id, start_date, delivery_date, created_at, updated_at
		FROM projects
		WHERE client_id = $1
		ORDER BY created_at DESC
	`

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, clientID); err != nil {
		return nil, fmt.Errorf("project repository: list by client %w", err)
	}

	return projects, nil
}

// ListAll возвращает все проекты (для админ-панели).
func (r *ProjectRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Project, error) {
	query := `
		SELECT id, name, description, price, status, progress, client_id, partner_id, start_date, delivery_date, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, limit, offset); err != nil {
		return nil, fmt.Errorf("project repository: list all %w", err)
	}

	return projects, nil
}

// Update обновляет изменяемые поля проекта.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = $1, description = $2, status = $3, start_date = $4, delivery_date = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		project.Name, project.Description, project.Status, project.StartDate, project.DeliveryDate, project.ID,
	).Scan(&project.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("project repository: update %w", err)
	}

	return nil
}

// UpdateProgress записывает новое значение прогресса. Возвращает false,
// если проект к этому моменту удалён: такая запись молча отбрасывается.
func (r *ProjectRepository) UpdateProgress(ctx context.Context, projectID uuid.UUID, progress int) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE projects SET progress = $1, updated_at = NOW() WHERE id = $2`,
		progress, projectID,
	)
	if err != nil {
		return false, fmt.Errorf("project repository: update progress %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("project repository: update progress rows affected %w", err)
	}

	return affected > 0, nil
}

// UpdatePriceAndStatus атомарно меняет цену и статус проекта.
// Используется при принятии ценового предложения.
func (r *ProjectRepository) UpdatePriceAndStatus(ctx context.Context, projectID uuid.UUID, price float64, status string) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE projects SET price = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		price, status, projectID,
	)
	if err != nil {
		return fmt.Errorf("project repository: update price and status %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("project repository: update price and status rows affected %w", err)
	}
	if affected == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// UpdateStatus меняет статус проекта.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, projectID,
	)
	if err != nil {
		return fmt.Errorf("project repository: update status %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("project repository: update status rows affected %w", err)
	}
	if affected == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// Delete удаляет проект. Этапы оплаты, таймлайн, переговоры, сообщения
// и файлы удаляются каскадно по внешним ключам.
func (r *ProjectRepository) Delete(ctx context.Context, projectID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("project repository: delete %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("project repository: delete rows affected %w", err)
	}
	if affected == 0 {
		return ErrProjectNotFound
	}

	return nil
}

// CreateMessage сохраняет сообщение в чате проекта.
func (r *ProjectRepository) CreateMessage(ctx context.Context, msg *models.ProjectMessage) error {
	query := `
		INSERT INTO project_messages (project_id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(ctx, query, msg.ProjectID, msg.UserID, msg.Message).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("project repository: create message %w", err)
	}

	return nil
}

// ListMessages возвращает сообщения проекта в хронологическом порядке.
func (r *ProjectRepository) ListMessages(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMessage, error) {
	query := `
		SELECT id, project_id, user_id, message, created_at
		FROM project_messages
		WHERE project_id = $1
		ORDER BY created_at ASC
	`

	var messages []models.ProjectMessage
	if err := r.db.SelectContext(ctx, &messages, query, projectID); err != nil {
		return nil, fmt.Errorf("project repository: list messages %w", err)
	}

	return messages, nil
}

// CreateFile сохраняет метаданные файла проекта.
func (r *ProjectRepository) CreateFile(ctx context.Context, file *models.ProjectFile) error {
	query := `
		INSERT INTO project_files (project_id, file_name, file_url, file_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		file.ProjectID, file.FileName, file.FileURL, file.FileType, file.UploadedBy,
	).Scan(&file.ID, &file.UploadedAt); err != nil {
		return fmt.Errorf("project repository: create file %w", err)
	}

	return nil
}

// ListFiles возвращает файлы проекта.
func (r *ProjectRepository) ListFiles(ctx context.Context, projectID uuid.UUID) ([]models.ProjectFile, error) {
	query := `
		SELECT id, project_id, file_name, file_url, file_type, uploaded_by, uploaded_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY uploaded_at DESC
	`

	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, projectID); err != nil {
		return nil, fmt.Errorf("project repository: list files %w", err)
	}

	return files, nil
}

// DeleteFile удаляет метаданные файла и возвращает удалённую запись,
// чтобы вызывающий мог убрать файл с диска.
func (r *ProjectRepository) DeleteFile(ctx context.Context, fileID uuid.UUID) (*models.ProjectFile, error) {
	query := `
		DELETE FROM project_files
		WHERE id = $1
		RETURNING id, project_id, file_name, file_url, file_type, uploaded_by, uploaded_at
	`

	var file models.ProjectFile
	if err := r.db.QueryRowxContext(ctx, query, fileID).StructScan(&file); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectFileNotFound
		}
		return nil, fmt.Errorf("project repository: delete file %w", err)
	}

	return &file, nil
}
