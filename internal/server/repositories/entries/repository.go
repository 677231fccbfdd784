package entries

import (
	"context"

	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

type Repository interface {
	InsertIfAbsent(ctx context.Context, e *models.CaseEntry) (bool, error)
	ListByCase(ctx context.Context, caseID, kind string) ([]*models.CaseEntry, error)
}
