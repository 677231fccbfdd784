// Package profiles provides a PostgreSQL-backed repository for browser
// profile records and their quota accounting.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// PostgresRepository implements profile storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new profile row.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO scourt_profiles (id, name, user_data_dir, case_count, reserved, max_cases, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.UserDataDir, p.CaseCount, p.Reserved, p.MaxCases, p.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns a profile by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, name, user_data_dir, case_count, reserved, max_cases, status, created_at
		FROM scourt_profiles WHERE id = $1
	`
	var p models.Profile
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.UserDataDir, &p.CaseCount, &p.Reserved, &p.MaxCases, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// List returns all profiles ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Profile, error) {
	query := `
		SELECT id, name, user_data_dir, case_count, reserved, max_cases, status, created_at
		FROM scourt_profiles ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(
			&p.ID, &p.Name, &p.UserDataDir, &p.CaseCount, &p.Reserved, &p.MaxCases, &p.Status, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reserve picks the least-used active profile that still has free quota and
// increments its reserved counter in the same statement, so two concurrent
// callers can never oversubscribe a profile. Returns common.ErrorNotFound
// when no profile qualifies.
func (r *PostgresRepository) Reserve(ctx context.Context) (*models.Profile, error) {
	query := `
		UPDATE scourt_profiles SET reserved = reserved + 1
		WHERE id = (
			SELECT id FROM scourt_profiles
			WHERE status = 'active' AND case_count + reserved < max_cases
			ORDER BY case_count
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, user_data_dir, case_count, reserved, max_cases, status, created_at
	`
	var p models.Profile
	err := r.db.QueryRowContext(ctx, query).Scan(
		&p.ID, &p.Name, &p.UserDataDir, &p.CaseCount, &p.Reserved, &p.MaxCases, &p.Status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// Release drops one reservation and, when credit is true, counts the case
// against the quota. A profile that reaches its quota flips to 'full'.
func (r *PostgresRepository) Release(ctx context.Context, id string, credit bool) error {
	delta := 0
	if credit {
		delta = 1
	}
	query := `
		UPDATE scourt_profiles
		SET reserved = GREATEST(reserved - 1, 0),
			case_count = case_count + $2,
			status = CASE WHEN case_count + $2 >= max_cases THEN 'full' ELSE status END
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, delta)
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

// SetStatus updates a profile's lifecycle status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status string) error {
	query := `UPDATE scourt_profiles SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
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
