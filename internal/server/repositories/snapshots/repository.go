package snapshots

import (
	"context"

	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, caseID string) (*models.CaseSnapshot, error)
	Upsert(ctx context.Context, s *models.CaseSnapshot) error
}
