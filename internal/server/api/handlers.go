package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/scourt/sync"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

const defaultNotificationCap = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type refreshRequest struct {
	CourtCode  string `json:"court_code"`
	CaseNumber string `json:"case_number"`
	PartyName  string `json:"party_name"`
}

type refreshResponse struct {
	CaseID          string                  `json:"case_id"`
	Method          string                  `json:"method"`
	BasicInfo       map[string]string       `json:"basic_info"`
	Hearings        []*models.CaseEntry     `json:"hearings"`
	Progress        []*models.CaseEntry     `json:"progress"`
	Documents       []models.DocumentRef    `json:"documents"`
	RelatedCases    []models.RelatedCaseRef `json:"related_cases"`
	NewEntries      int                     `json:"new_entries"`
	CaptchaAttempts int                     `json:"captcha_attempts"`
	DurationMs      int64                   `json:"duration_ms"`
}

func splitByKind(entries []*models.CaseEntry) (hearings, progress []*models.CaseEntry) {
	for _, e := range entries {
		if e.Kind == models.EntryKindHearing {
			hearings = append(hearings, e)
		} else {
			progress = append(progress, e)
		}
	}
	return hearings, progress
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CourtCode == "" || req.CaseNumber == "" {
		s.writeError(w, http.StatusBadRequest, "court_code and case_number are required")
		return
	}

	res, err := s.syncer.Sync(r.Context(), sync.Request{
		CaseID:     caseID,
		CourtCode:  req.CourtCode,
		CaseNumber: req.CaseNumber,
		PartyName:  req.PartyName,
	})
	if err != nil {
		s.logger.Error(r.Context(), "sync failed", "case", caseID, "error", err)
		switch {
		case errors.Is(err, common.ErrAllocationFailure):
			s.writeError(w, http.StatusServiceUnavailable, "no profile available")
		case errors.Is(err, common.ErrChallengeSolveFailure):
			s.writeError(w, http.StatusBadGateway, "challenge gate not passed")
		case errors.Is(err, common.ErrExtractionTimeout):
			s.writeError(w, http.StatusGatewayTimeout, "portal extraction timed out")
		default:
			s.writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	hearings, progress := splitByKind(res.Entries)
	s.writeJSON(w, http.StatusOK, refreshResponse{
		CaseID:          res.CaseID,
		Method:          res.Method,
		BasicInfo:       res.BasicInfo,
		Hearings:        hearings,
		Progress:        progress,
		Documents:       res.Documents,
		RelatedCases:    res.RelatedCases,
		NewEntries:      res.NewEntries,
		CaptchaAttempts: res.CaptchaAttempts,
		DurationMs:      res.Duration.Milliseconds(),
	})
}

type snapshotResponse struct {
	CaseID        string                       `json:"case_id"`
	BasicInfo     map[string]string            `json:"basic_info"`
	ScrapedAt     time.Time                    `json:"scraped_at"`
	Hearings      []*models.CaseEntry          `json:"hearings"`
	Progress      []*models.CaseEntry          `json:"progress"`
	Documents     []models.DocumentRef         `json:"documents"`
	RelatedCases  []models.RelatedCaseRef      `json:"related_cases"`
	Notifications []*models.ChangeNotification `json:"notifications"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	ctx := r.Context()

	snap, err := s.repos.Snapshots(s.db).Get(ctx, caseID)
	if errors.Is(err, common.ErrorNotFound) {
		s.writeError(w, http.StatusNotFound, "case has never been synced")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "snapshot read failed")
		return
	}

	hearings, err := s.repos.Entries(s.db).ListByCase(ctx, caseID, models.EntryKindHearing)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "entry read failed")
		return
	}
	progress, err := s.repos.Entries(s.db).ListByCase(ctx, caseID, models.EntryKindProgress)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "entry read failed")
		return
	}

	limit := defaultNotificationCap
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifs, err := s.repos.Notifications(s.db).ListRecent(ctx, caseID, limit, unreadOnly)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "notification read failed")
		return
	}

	s.writeJSON(w, http.StatusOK, snapshotResponse{
		CaseID:        caseID,
		BasicInfo:     snap.BasicInfo,
		ScrapedAt:     snap.ScrapedAt,
		Hearings:      hearings,
		Progress:      progress,
		Documents:     snap.Documents,
		RelatedCases:  snap.RelatedCases,
		Notifications: notifs,
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.repos.Notifications(s.db).MarkRead(r.Context(), id)
	if errors.Is(err, common.ErrorNotFound) {
		s.writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

type profileResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CaseCount int    `json:"case_count"`
	Reserved  int    `json:"reserved"`
	MaxCases  int    `json:"max_cases"`
	Status    string `json:"status"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.profiles.Usage(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "profile read failed")
		return
	}

	out := make([]profileResponse, 0, len(list))
	for _, p := range list {
		out = append(out, profileResponse{
			ID:        p.ID,
			Name:      p.Name,
			CaseCount: p.CaseCount,
			Reserved:  p.Reserved,
			MaxCases:  p.MaxCases,
			Status:    p.Status,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
