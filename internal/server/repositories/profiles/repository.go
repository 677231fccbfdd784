package profiles

import (
	"context"

	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	Reserve(ctx context.Context) (*models.Profile, error)
	Release(ctx context.Context, id string, credit bool) error
	SetStatus(ctx context.Context, id string, status string) error
}
