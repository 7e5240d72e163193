package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lectorium/workshop/internal/domain/models"
)

type WorkshopRepository interface {
	Create(ctx context.Context, workshop *models.Workshop) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error)
	ListByHost(ctx context.Context, hostID uuid.UUID) ([]*models.Workshop, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type workshopRepo struct {
	db *sqlx.DB
}

func NewWorkshopRepo(db *sqlx.DB) WorkshopRepository {
	return &workshopRepo{db: db}
}

func (r *workshopRepo) Create(ctx context.Context, workshop *models.Workshop) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO workshops (id, host_id, title, scheduled_at, created_at) VALUES ($1, $2, $3, $4, $5)",
		workshop.ID, workshop.HostID, workshop.Title, workshop.ScheduledAt, workshop.CreatedAt,
	)

	return err
}

func (r *workshopRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	var workshop models.Workshop

	err := r.db.GetContext(ctx, &workshop, "SELECT * FROM workshops WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	return &workshop, nil
}

func (r *workshopRepo) ListByHost(ctx context.Context, hostID uuid.UUID) ([]*models.Workshop, error) {
	var workshops []*models.Workshop

	err := r.db.SelectContext(ctx, &workshops,
		"SELECT * FROM workshops WHERE host_id = $1 ORDER BY scheduled_at", hostID)
	if err != nil {
		return nil, err
	}

	return workshops, nil
}

func (r *workshopRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workshops WHERE id = $1", id)

	return err
}
