package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/validation"
)

// PortfolioServiceRepository описывает зависимости от хранилища портфолио.
type PortfolioServiceRepository interface {
	Create(ctx context.Context, item *models.PortfolioItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PortfolioItem, error)
	ListActive(ctx context.Context, category string) ([]models.PortfolioItem, error)
	Update(ctx context.Context, item *models.PortfolioItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PortfolioService управляет публичным портфолио студии.
type PortfolioService struct {
	repo PortfolioServiceRepository
}

// NewPortfolioService создаёт сервис портфолио.
func NewPortfolioService(repo PortfolioServiceRepository) *PortfolioService {
	return &PortfolioService{repo: repo}
}

// ListPublic возвращает активные работы портфолио, опционально по категории.
func (s *PortfolioService) ListPublic(ctx context.Context, category string) ([]models.PortfolioItem, error) {
	return s.repo.ListActive(ctx, category)
}

// CreateItem добавляет работу в портфолио.
func (s *PortfolioService) CreateItem(ctx context.Context, item *models.PortfolioItem) error {
	if err := validation.ValidateNonEmpty("название работы", item.Title); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateNonEmpty("категория", item.Category); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.repo.Create(ctx, item)
}

// UpdateItem обновляет работу портфолио.
func (s *PortfolioService) UpdateItem(ctx context.Context, item *models.PortfolioItem) error {
	if _, err := s.repo.GetByID(ctx, item.ID); err != nil {
		if errors.Is(err, repository.ErrPortfolioItemNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "работа портфолио не найдена")
		}
		return err
	}

	if err := validation.ValidateNonEmpty("название работы", item.Title); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return s.repo.Update(ctx, item)
}

// DeleteItem удаляет работу портфолио.
func (s *PortfolioService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPortfolioItemNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "работа портфолио не найдена")
		}
		return err
	}
	return nil
}
