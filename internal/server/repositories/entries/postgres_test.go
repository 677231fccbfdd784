package entries

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleEntry() *models.CaseEntry {
	return &models.CaseEntry{
		CaseID:      "case-1",
		Kind:        models.EntryKindHearing,
		ContentHash: "abc123",
		Date:        "2025.03.12",
		Time:        "10:30",
		Type:        "변론기일",
		Location:    "제301호 법정",
	}
}

func TestInsertIfAbsent_NewRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+case_entries\s*\(case_id,\s*kind,\s*content_hash,\s*entry_date,\s*entry_time,\s*entry_type,\s*content,\s*result,\s*location\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)\s*ON\s+CONFLICT\s*\(case_id,\s*content_hash\)\s*DO\s+NOTHING\s*$`

	e := sampleEntry()
	mock.ExpectExec(q).
		WithArgs(e.CaseID, e.Kind, e.ContentHash, e.Date, e.Time, e.Type, e.Content, e.Result, e.Location).
		WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, err := repo.InsertIfAbsent(context.Background(), e)
	if err != nil {
		t.Fatalf("InsertIfAbsent error: %v", err)
	}
	if !inserted {
		t.Fatal("expected inserted=true for a new row")
	}
}

func TestInsertIfAbsent_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	e := sampleEntry()
	mock.ExpectExec(`INSERT\s+INTO\s+case_entries`).
		WithArgs(e.CaseID, e.Kind, e.ContentHash, e.Date, e.Time, e.Type, e.Content, e.Result, e.Location).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), e)
	if err != nil {
		t.Fatalf("InsertIfAbsent error: %v", err)
	}
	if inserted {
		t.Fatal("expected inserted=false for an existing hash")
	}
}

func TestInsertIfAbsent_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+case_entries`).
		WillReturnError(errors.New("db down"))

	_, err := repo.InsertIfAbsent(context.Background(), sampleEntry())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByCase_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "case_id", "kind", "content_hash", "entry_date", "entry_time", "entry_type", "content", "result", "location", "created_at"}).
		AddRow(int64(1), "case-1", "progress", "h1", "2025.01.10", "", "", "소장접수", "", "", time.Now()).
		AddRow(int64(2), "case-1", "progress", "h2", "2025.02.01", "", "", "변론기일", "속행", "", time.Now())
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*case_id,.*FROM\s+case_entries\s+WHERE\s+case_id\s*=\s*\$1\s+AND\s+kind\s*=\s*\$2\s+ORDER\s+BY\s+entry_date,\s*id`).
		WithArgs("case-1", "progress").
		WillReturnRows(rows)

	got, err := repo.ListByCase(context.Background(), "case-1", models.EntryKindProgress)
	if err != nil {
		t.Fatalf("ListByCase error: %v", err)
	}
	if len(got) != 2 || got[0].Content != "소장접수" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
