// Package snapshots provides a PostgreSQL-backed repository for merged
// case snapshots. BasicInfo, Documents and RelatedCases are stored as
// jsonb documents.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// PostgresRepository implements snapshot storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the stored snapshot for a case, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, caseID string) (*models.CaseSnapshot, error) {
	query := `SELECT case_id, basic_info, documents, related_cases, scraped_at FROM case_snapshots WHERE case_id = $1`

	var s models.CaseSnapshot
	var rawInfo, rawDocs, rawRelated []byte
	err := r.db.QueryRowContext(ctx, query, caseID).Scan(&s.CaseID, &rawInfo, &rawDocs, &rawRelated, &s.ScrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(rawInfo, &s.BasicInfo); err != nil {
		return nil, fmt.Errorf("basic info decode error: %w", err)
	}
	if err := json.Unmarshal(rawDocs, &s.Documents); err != nil {
		return nil, fmt.Errorf("documents decode error: %w", err)
	}
	if err := json.Unmarshal(rawRelated, &s.RelatedCases); err != nil {
		return nil, fmt.Errorf("related cases decode error: %w", err)
	}
	return &s, nil
}

// Upsert writes the merged snapshot. The caller is responsible for merge
// policy; this is a plain last-write-wins upsert of the merged document.
func (r *PostgresRepository) Upsert(ctx context.Context, s *models.CaseSnapshot) error {
	rawInfo, err := json.Marshal(s.BasicInfo)
	if err != nil {
		return fmt.Errorf("basic info encode error: %w", err)
	}
	rawDocs, err := marshalList(s.Documents)
	if err != nil {
		return fmt.Errorf("documents encode error: %w", err)
	}
	rawRelated, err := marshalList(s.RelatedCases)
	if err != nil {
		return fmt.Errorf("related cases encode error: %w", err)
	}
	query := `
		INSERT INTO case_snapshots (case_id, basic_info, documents, related_cases, scraped_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (case_id)
		DO UPDATE SET basic_info = EXCLUDED.basic_info, documents = EXCLUDED.documents,
			related_cases = EXCLUDED.related_cases, scraped_at = EXCLUDED.scraped_at
	`
	if _, err := r.db.ExecContext(ctx, query, s.CaseID, rawInfo, rawDocs, rawRelated, s.ScrapedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// marshalList keeps nil slices as jsonb arrays, not nulls.
func marshalList[T any](list []T) ([]byte, error) {
	if list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(list)
}
