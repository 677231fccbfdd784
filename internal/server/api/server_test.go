package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/sync"
	"github.com/dmitrijs2005/courtsync/internal/server/auth"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/entries"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/linkages"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/snapshots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeSyncer struct {
	res *sync.Result
	err error
	got sync.Request
}

func (f *fakeSyncer) Sync(ctx context.Context, req sync.Request) (*sync.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeProfiles struct {
	list []*models.Profile
}

func (f *fakeProfiles) Usage(ctx context.Context) ([]*models.Profile, error) {
	return f.list, nil
}

type fakeSnapshots struct{ snap *models.CaseSnapshot }

func (f *fakeSnapshots) Get(ctx context.Context, caseID string) (*models.CaseSnapshot, error) {
	if f.snap == nil || f.snap.CaseID != caseID {
		return nil, common.ErrorNotFound
	}
	return f.snap, nil
}

func (f *fakeSnapshots) Upsert(ctx context.Context, s *models.CaseSnapshot) error { return nil }

type fakeEntries struct{ entries []*models.CaseEntry }

func (f *fakeEntries) InsertIfAbsent(ctx context.Context, e *models.CaseEntry) (bool, error) {
	return false, nil
}

func (f *fakeEntries) ListByCase(ctx context.Context, caseID, kind string) ([]*models.CaseEntry, error) {
	out := []*models.CaseEntry{}
	for _, e := range f.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeNotifs struct {
	list     []*models.ChangeNotification
	markedID string
}

func (f *fakeNotifs) Create(ctx context.Context, n *models.ChangeNotification) error { return nil }

func (f *fakeNotifs) ListRecent(ctx context.Context, caseID string, limit int, unreadOnly bool) ([]*models.ChangeNotification, error) {
	if limit < len(f.list) {
		return f.list[:limit], nil
	}
	return f.list, nil
}

func (f *fakeNotifs) MarkRead(ctx context.Context, id string) error {
	if id == "missing" {
		return common.ErrorNotFound
	}
	f.markedID = id
	return nil
}

type fakeRepos struct {
	snapshots *fakeSnapshots
	entries   *fakeEntries
	notifs    *fakeNotifs
}

func (f *fakeRepos) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepos) Profiles(db dbx.DBTX) profiles.Repository           { return nil }
func (f *fakeRepos) Linkages(db dbx.DBTX) linkages.Repository           { return nil }
func (f *fakeRepos) Snapshots(db dbx.DBTX) snapshots.Repository         { return f.snapshots }
func (f *fakeRepos) Entries(db dbx.DBTX) entries.Repository             { return f.entries }
func (f *fakeRepos) Notifications(db dbx.DBTX) notifications.Repository { return f.notifs }

type testEnv struct {
	srv      *httptest.Server
	syncer   *fakeSyncer
	repos    *fakeRepos
	profiles *fakeProfiles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	env := &testEnv{
		syncer: &fakeSyncer{},
		repos: &fakeRepos{
			snapshots: &fakeSnapshots{},
			entries:   &fakeEntries{},
			notifs:    &fakeNotifs{},
		},
		profiles: &fakeProfiles{},
	}
	s := NewServer(":0", testSecret, nil, env.repos, env.syncer, env.profiles, logger)
	env.srv = httptest.NewServer(s.routes())
	t.Cleanup(env.srv.Close)
	return env
}

func authedRequest(t *testing.T, method, url string, body []byte) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken("test-client", []byte(testSecret), time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/profiles")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_BadToken(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/profiles", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_Success(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.res = &sync.Result{
		CaseID: "case-1", Method: sync.MethodScraper, NewEntries: 2,
		BasicInfo: map[string]string{"사건명": "이혼"},
		Entries: []*models.CaseEntry{
			{CaseID: "case-1", Kind: models.EntryKindHearing, Date: "2025.03.12"},
			{CaseID: "case-1", Kind: models.EntryKindProgress, Date: "2024.01.05"},
		},
		Documents:       []models.DocumentRef{{Date: "2024.01.05", Content: "소장"}},
		RelatedCases:    []models.RelatedCaseRef{{CaseNumber: "2024즈기100", Relation: "사전처분"}},
		CaptchaAttempts: 1, Duration: 42 * time.Second,
	}

	body, _ := json.Marshal(map[string]string{
		"court_code":  "000210",
		"case_number": "2024드단25547",
		"party_name":  "김민수",
	})
	req := authedRequest(t, http.MethodPost, env.srv.URL+"/api/cases/case-1/refresh", body)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got refreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "case-1", got.CaseID)
	assert.Equal(t, 2, got.NewEntries)
	assert.Equal(t, int64(42000), got.DurationMs)
	assert.Equal(t, "이혼", got.BasicInfo["사건명"])
	assert.Len(t, got.Hearings, 1)
	assert.Len(t, got.Progress, 1)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "소장", got.Documents[0].Content)
	require.Len(t, got.RelatedCases, 1)
	assert.Equal(t, "사전처분", got.RelatedCases[0].Relation)

	assert.Equal(t, "case-1", env.syncer.got.CaseID)
	assert.Equal(t, "2024드단25547", env.syncer.got.CaseNumber)
}

func TestRefresh_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"party_name": "김민수"})
	req := authedRequest(t, http.MethodPost, env.srv.URL+"/api/cases/case-1/refresh", body)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefresh_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrAllocationFailure, http.StatusServiceUnavailable},
		{common.ErrChallengeSolveFailure, http.StatusBadGateway},
		{common.ErrExtractionTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		env := newTestEnv(t)
		env.syncer.err = tt.err

		body, _ := json.Marshal(map[string]string{
			"court_code": "000210", "case_number": "2024드단25547",
		})
		req := authedRequest(t, http.MethodPost, env.srv.URL+"/api/cases/case-1/refresh", body)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.want, resp.StatusCode, "error %v", tt.err)
	}
}

func TestSnapshot_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := authedRequest(t, http.MethodGet, env.srv.URL+"/api/cases/unknown/snapshot", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshot_Success(t *testing.T) {
	env := newTestEnv(t)
	env.repos.snapshots.snap = &models.CaseSnapshot{
		CaseID:       "case-1",
		BasicInfo:    map[string]string{"사건명": "이혼"},
		Documents:    []models.DocumentRef{{Date: "2024.01.05", Content: "소장"}},
		RelatedCases: []models.RelatedCaseRef{{CaseNumber: "2024즈기100", Relation: "사전처분"}},
		ScrapedAt:    time.Now(),
	}
	env.repos.entries.entries = []*models.CaseEntry{
		{CaseID: "case-1", Kind: models.EntryKindHearing, Date: "2025.03.12"},
		{CaseID: "case-1", Kind: models.EntryKindProgress, Date: "2024.01.05"},
	}
	env.repos.notifs.list = []*models.ChangeNotification{
		{ID: "n1", CaseID: "case-1", Summary: "2024.01.05 소장접수"},
	}

	req := authedRequest(t, http.MethodGet, env.srv.URL+"/api/cases/case-1/snapshot", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got snapshotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "이혼", got.BasicInfo["사건명"])
	assert.Len(t, got.Hearings, 1)
	assert.Len(t, got.Progress, 1)
	assert.Len(t, got.Documents, 1)
	assert.Len(t, got.RelatedCases, 1)
	assert.Len(t, got.Notifications, 1)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)

	req := authedRequest(t, http.MethodPost, env.srv.URL+"/api/notifications/n1/read", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "n1", env.repos.notifs.markedID)

	req = authedRequest(t, http.MethodPost, env.srv.URL+"/api/notifications/missing/read", nil)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.list = []*models.Profile{
		{ID: "p1", Name: "profile-1", CaseCount: 10, MaxCases: 50, Status: models.ProfileStatusActive},
	}

	req := authedRequest(t, http.MethodGet, env.srv.URL+"/api/profiles", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []profileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].CaseCount)
}
