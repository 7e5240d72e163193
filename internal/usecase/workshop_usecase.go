package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lectorium/workshop/internal/domain/models"
	"github.com/lectorium/workshop/internal/infra/adapters/postgres/repository"
)

type WorkshopUsecase interface {
	CreateWorkshop(ctx context.Context, hostID uuid.UUID, title string, scheduledAt time.Time) (*models.Workshop, error)
	GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	ListWorkshops(ctx context.Context, hostID uuid.UUID) ([]*models.Workshop, error)
	DeleteWorkshop(ctx context.Context, id uuid.UUID) error
}

type workshopUsecase struct {
	workshopRepo repository.WorkshopRepository
}

func NewWorkshopUsecase(workshopRepo repository.WorkshopRepository) WorkshopUsecase {
	return &workshopUsecase{workshopRepo: workshopRepo}
}

func (uc *workshopUsecase) CreateWorkshop(ctx context.Context, hostID uuid.UUID, title string, scheduledAt time.Time) (*models.Workshop, error) {
	workshop := models.NewWorkshop(hostID, title, scheduledAt)

	if err := uc.workshopRepo.Create(ctx, workshop); err != nil {
		return nil, fmt.Errorf("create workshop: %w", err)
	}

	return workshop, nil
}

func (uc *workshopUsecase) GetWorkshop(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	return uc.workshopRepo.GetByID(ctx, id)
}

func (uc *workshopUsecase) ListWorkshops(ctx context.Context, hostID uuid.UUID) ([]*models.Workshop, error) {
	return uc.workshopRepo.ListByHost(ctx, hostID)
}

func (uc *workshopUsecase) DeleteWorkshop(ctx context.Context, id uuid.UUID) error {
	return uc.workshopRepo.Delete(ctx, id)
}
