// Package notifications provides a PostgreSQL-backed repository for change
// notifications raised when a sync discovers a new timeline entry.
package notifications

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// PostgresRepository implements notification storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a notification.
func (r *PostgresRepository) Create(ctx context.Context, n *models.ChangeNotification) error {
	query := `
		INSERT INTO change_notifications (id, case_id, entry_hash, summary)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.CaseID, n.EntryHash, n.Summary); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns a case's notifications, most recent first, capped at
// limit. When unreadOnly is set, read notifications are filtered out.
func (r *PostgresRepository) ListRecent(ctx context.Context, caseID string, limit int, unreadOnly bool) ([]*models.ChangeNotification, error) {
	query := `
		SELECT id, case_id, entry_hash, summary, is_read, created_at
		FROM change_notifications
		WHERE case_id = $1 AND ($3 = false OR is_read = false)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, caseID, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to select notifications: %w", err)
	}
	defer rows.Close()

	var result []*models.ChangeNotification
	for rows.Next() {
		var item models.ChangeNotification
		if err := rows.Scan(
			&item.ID, &item.CaseID, &item.EntryHash, &item.Summary, &item.Read, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead flags a notification as read.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE change_notifications SET is_read = true WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
