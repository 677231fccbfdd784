package notifications

import (
	"context"

	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.ChangeNotification) error
	ListRecent(ctx context.Context, caseID string, limit int, unreadOnly bool) ([]*models.ChangeNotification, error)
	MarkRead(ctx context.Context, id string) error
}
