// Package linkages provides a PostgreSQL-backed repository for case-to-portal
// linkage records.
package linkages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// PostgresRepository implements linkage storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the linkage for a case, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, caseID string) (*models.CaseLinkage, error) {
	query := `
		SELECT case_id, court_code, case_year, case_type, serial, party_name,
			enc_case_token, session_token, COALESCE(profile_id::text, ''), created_at
		FROM case_linkages WHERE case_id = $1
	`
	var l models.CaseLinkage
	err := r.db.QueryRowContext(ctx, query, caseID).Scan(
		&l.CaseID, &l.CourtCode, &l.CaseYear, &l.CaseType, &l.Serial, &l.PartyName,
		&l.EncCaseToken, &l.SessionToken, &l.ProfileID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &l, nil
}

// Create inserts a complete linkage. A linkage is written only once, after
// the first successful search; re-creating one is a conflict.
func (r *PostgresRepository) Create(ctx context.Context, l *models.CaseLinkage) error {
	query := `
		INSERT INTO case_linkages (case_id, court_code, case_year, case_type, serial, party_name, enc_case_token, session_token, profile_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid)
		ON CONFLICT (case_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		l.CaseID, l.CourtCode, l.CaseYear, l.CaseType, l.Serial, l.PartyName,
		l.EncCaseToken, l.SessionToken, l.ProfileID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrPersistenceConflict
	}
	return nil
}

// UpdateTokens refreshes the portal-issued tokens on an existing linkage.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, caseID, encCaseToken, sessionToken string) error {
	query := `
		UPDATE case_linkages SET enc_case_token = $2, session_token = $3
		WHERE case_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, caseID, encCaseToken, sessionToken)
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
