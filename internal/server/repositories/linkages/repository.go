package linkages

import (
	"context"

	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, caseID string) (*models.CaseLinkage, error)
	Create(ctx context.Context, l *models.CaseLinkage) error
	UpdateTokens(ctx context.Context, caseID, encCaseToken, sessionToken string) error
}
