// Package entries provides a PostgreSQL-backed repository for case timeline
// entries keyed by content hash.
package entries

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertIfAbsent writes the entry unless its (case, hash) pair already
// exists. Returns true when a new row was inserted. Re-running a sync over
// unchanged entries therefore leaves the table untouched.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, e *models.CaseEntry) (bool, error) {
	query := `
		INSERT INTO case_entries (case_id, kind, content_hash, entry_date, entry_time, entry_type, content, result, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (case_id, content_hash) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		e.CaseID, e.Kind, e.ContentHash, e.Date, e.Time, e.Type, e.Content, e.Result, e.Location)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// ListByCase returns a case's entries of one kind, oldest first.
func (r *PostgresRepository) ListByCase(ctx context.Context, caseID, kind string) ([]*models.CaseEntry, error) {
	query := `
		SELECT id, case_id, kind, content_hash, entry_date, entry_time, entry_type, content, result, location, created_at
		FROM case_entries
		WHERE case_id = $1 AND kind = $2
		ORDER BY entry_date, id
	`
	rows, err := r.db.QueryContext(ctx, query, caseID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.CaseEntry
	for rows.Next() {
		var item models.CaseEntry
		if err := rows.Scan(
			&item.ID, &item.CaseID, &item.Kind, &item.ContentHash, &item.Date, &item.Time,
			&item.Type, &item.Content, &item.Result, &item.Location, &item.CreatedAt,
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
