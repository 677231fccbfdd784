// Package sync runs a full portal synchronization for one case: allocate a
// profile, pass the challenge gate, extract the case documents, normalize
// them and persist only what changed. A run is a small state machine; every
// transition is logged so a stuck sync can be placed precisely.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/captcha"
	"github.com/dmitrijs2005/courtsync/internal/scourt/pool"
	"github.com/dmitrijs2005/courtsync/internal/scourt/portal"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// State names one phase of a sync run.
type State string

const (
	StateIdle             State = "IDLE"
	StateProfileAllocated State = "PROFILE_ALLOCATED"
	StateSessionOpen      State = "SESSION_OPEN"
	StateChallengePending State = "CHALLENGE_PENDING"
	StateSolving          State = "SOLVING"
	StatePayloadExtracted State = "PAYLOAD_EXTRACTED"
	StateNormalized       State = "NORMALIZED"
	StateDiffed           State = "DIFFED"
	StatePersisted        State = "PERSISTED"
	StateFailed           State = "FAILED"
)

// Sync methods.
const (
	MethodScraper  = "scraper"
	MethodFallback = "fallback-api"
)

// errSessionUnusable marks a lease whose browser can no longer be trusted;
// the profile is retired instead of returned to rotation.
var errSessionUnusable = errors.New("browser session unusable")

// Pool is the slice of the session pool the engine uses.
type Pool interface {
	Allocate(ctx context.Context) (*pool.Lease, error)
	Release(ctx context.Context, lease *pool.Lease, synced bool) error
	Retire(ctx context.Context, lease *pool.Lease)
}

// Solver reads a challenge image into a digit answer.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// Fallback reads a stored case through the structured endpoint when the
// challenge gate cannot be passed.
type Fallback interface {
	InitSession(ctx context.Context, affinityToken string) (*portal.Session, error)
	FetchCase(ctx context.Context, s *portal.Session, coords portal.Coordinates, encCaseToken string) (*portal.RawPayload, error)
}

// Archiver keeps failure evidence. Archiving never fails a sync.
type Archiver interface {
	ArchiveChallenge(ctx context.Context, image []byte)
	ArchiveMisses(ctx context.Context, caseID string, rawValues []string)
}

type noopArchiver struct{}

func (noopArchiver) ArchiveChallenge(context.Context, []byte)        {}
func (noopArchiver) ArchiveMisses(context.Context, string, []string) {}

// Request identifies the case to synchronize. CaseNumber may carry a court
// prefix, full-width digits or separators; it is normalized before use.
type Request struct {
	CaseID     string
	CourtCode  string
	CaseNumber string
	PartyName  string
}

// Result summarizes a finished run and carries the synchronized view.
type Result struct {
	CaseID          string
	Method          string
	BasicInfo       map[string]string
	Documents       []models.DocumentRef
	RelatedCases    []models.RelatedCaseRef
	Entries         []*models.CaseEntry
	NewEntries      int
	CaptchaAttempts int
	Duration        time.Duration
}

type Engine struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	pool     Pool
	solver   Solver
	fallback Fallback
	archiver Archiver
	logger   logging.Logger

	attemptCeiling int
	budget         time.Duration
}

func NewEngine(db *sql.DB, repos repomanager.RepositoryManager, p Pool, solver Solver,
	fallback Fallback, archiver Archiver, attemptCeiling int, budget time.Duration,
	logger logging.Logger) *Engine {
	if archiver == nil {
		archiver = noopArchiver{}
	}
	return &Engine{
		db:             db,
		repos:          repos,
		pool:           p,
		solver:         solver,
		fallback:       fallback,
		archiver:       archiver,
		attemptCeiling: attemptCeiling,
		budget:         budget,
		logger:         logger,
	}
}

type run struct {
	req      Request
	coords   portal.Coordinates
	linkage  *models.CaseLinkage
	state    State
	attempts int
}

func (e *Engine) transition(ctx context.Context, r *run, to State) {
	e.logger.Debug(ctx, "sync transition", "case", r.req.CaseID, "from", string(r.state), "to", string(to))
	r.state = to
}

// Sync runs one full synchronization within the engine's wall-clock budget.
// On failure nothing is persisted and the leased profile's quota is left
// untouched.
func (e *Engine) Sync(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.budget)
	defer cancel()

	r := &run{req: req, state: StateIdle}

	year, caseType, serial, err := portal.ParseCaseNumber(
		portal.NormalizeCaseNumber(portal.StripCourtPrefix(req.CaseNumber)))
	if err != nil {
		return nil, fmt.Errorf("invalid case number %q: %w", req.CaseNumber, err)
	}
	r.coords = portal.Coordinates{CourtCode: req.CourtCode, Year: year, CaseType: caseType, Serial: serial}

	if linkage, err := e.repos.Linkages(e.db).Get(ctx, req.CaseID); err == nil {
		r.linkage = linkage
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	lease, err := e.pool.Allocate(ctx)
	if err != nil {
		e.transition(ctx, r, StateFailed)
		return nil, err
	}
	e.transition(ctx, r, StateProfileAllocated)
	e.transition(ctx, r, StateSessionOpen)

	payload, method, stored, err := e.acquirePayload(ctx, r, lease)
	if err != nil {
		e.transition(ctx, r, StateFailed)
		if errors.Is(err, errSessionUnusable) {
			e.pool.Retire(ctx, lease)
		} else if relErr := e.pool.Release(ctx, lease, false); relErr != nil {
			e.logger.Error(ctx, "lease release failed", "case", req.CaseID, "error", relErr)
		}
		return nil, err
	}
	e.transition(ctx, r, StatePayloadExtracted)

	norm := normalizeEntries(req.CaseID, payload)
	if len(norm.Misses) > 0 {
		e.logger.Warn(ctx, "unmapped portal values", "case", req.CaseID, "values", norm.Misses)
		e.archiver.ArchiveMisses(ctx, req.CaseID, norm.Misses)
	}
	e.transition(ctx, r, StateNormalized)

	newEntries, snap, err := e.persist(ctx, r, lease, payload, norm, method)
	if err != nil {
		e.transition(ctx, r, StateFailed)
		if relErr := e.pool.Release(ctx, lease, false); relErr != nil {
			e.logger.Error(ctx, "lease release failed", "case", req.CaseID, "error", relErr)
		}
		return nil, fmt.Errorf("persisting sync outcome: %w", err)
	}
	e.transition(ctx, r, StatePersisted)

	// the profile's quota is only charged when this run stored a new case
	// into it
	credit := method == MethodScraper && !stored
	if err := e.pool.Release(ctx, lease, credit); err != nil {
		e.logger.Error(ctx, "lease release failed", "case", req.CaseID, "error", err)
	}

	res := &Result{
		CaseID:          req.CaseID,
		Method:          method,
		BasicInfo:       snap.BasicInfo,
		Documents:       snap.Documents,
		RelatedCases:    snap.RelatedCases,
		Entries:         norm.Entries,
		NewEntries:      newEntries,
		CaptchaAttempts: r.attempts,
		Duration:        time.Since(start),
	}
	e.logger.Info(ctx, "sync finished", "case", req.CaseID, "method", method,
		"new_entries", newEntries, "attempts", r.attempts, "duration", res.Duration.String())
	return res, nil
}

// acquirePayload gets the case documents, first through the browser and,
// when the challenge gate cannot be passed, through the structured endpoint
// using previously captured tokens.
func (e *Engine) acquirePayload(ctx context.Context, r *run, lease *pool.Lease) (*portal.RawPayload, string, bool, error) {
	payload, stored, err := e.browserFetch(ctx, r, lease)
	if err == nil {
		return payload, MethodScraper, stored, nil
	}
	if !errors.Is(err, common.ErrChallengeSolveFailure) {
		return nil, "", false, err
	}

	if r.linkage == nil || r.linkage.EncCaseToken == "" || r.linkage.SessionToken == "" {
		return nil, "", false, err
	}

	e.logger.Warn(ctx, "challenge gate not passed, using structured endpoint",
		"case", r.req.CaseID, "attempts", r.attempts)
	sess, ferr := e.fallback.InitSession(ctx, r.linkage.SessionToken)
	if ferr != nil {
		return nil, "", false, errors.Join(err, ferr)
	}
	payload, ferr = e.fallback.FetchCase(ctx, sess, r.coords, r.linkage.EncCaseToken)
	if ferr != nil {
		return nil, "", false, errors.Join(err, ferr)
	}
	return payload, MethodFallback, false, nil
}

// browserFetch drives the search form and the solve-submit loop, then
// extracts the detail view. A stored case skips the gate entirely.
func (e *Engine) browserFetch(ctx context.Context, r *run, lease *pool.Lease) (*portal.RawPayload, bool, error) {
	challenge, stored, err := lease.Session.Search(ctx, r.coords, r.req.PartyName)
	if err != nil {
		return nil, false, err
	}

	if !stored {
		if err := e.passGate(ctx, r, lease, challenge); err != nil {
			return nil, false, err
		}
		if err := lease.Session.OpenResult(ctx, r.coords); err != nil {
			return nil, false, err
		}
	}

	payload, err := e.extract(ctx, lease)
	if errors.Is(err, common.ErrExtractionTimeout) {
		// one fresh tab before giving up; a wedged WebSquare renderer is
		// the usual cause
		e.logger.Warn(ctx, "extraction timed out, retrying on fresh tab", "case", r.req.CaseID)
		if resetErr := lease.Session.Reset(ctx); resetErr != nil {
			return nil, false, fmt.Errorf("%w: tab reset failed: %v", errSessionUnusable, resetErr)
		}
		if _, reopened, searchErr := lease.Session.Search(ctx, r.coords, r.req.PartyName); searchErr != nil || !reopened {
			return nil, false, err
		}
		payload, err = e.extract(ctx, lease)
	}
	if err != nil {
		return nil, false, err
	}
	return payload, stored, nil
}

func (e *Engine) extract(ctx context.Context, lease *pool.Lease) (*portal.RawPayload, error) {
	basic, err := lease.Session.ExtractBasicInfo(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := lease.Session.ExtractProgress(ctx)
	if err != nil {
		return nil, err
	}
	payload.BasicInfo = basic
	return payload, nil
}

// passGate runs the solve-submit loop up to the attempt ceiling. Solver
// throttling and unreadable replies burn an attempt and refresh the
// challenge; so does a portal mismatch.
func (e *Engine) passGate(ctx context.Context, r *run, lease *pool.Lease, challenge *portal.Challenge) error {
	e.transition(ctx, r, StateChallengePending)

	for r.attempts < e.attemptCeiling {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.attempts++
		e.transition(ctx, r, StateSolving)

		answer, err := e.solver.Solve(ctx, challenge.Image)
		if err != nil {
			if errors.Is(err, captcha.ErrRateLimited) || errors.Is(err, captcha.ErrUnparsable) {
				e.logger.Warn(ctx, "solve cycle skipped", "case", r.req.CaseID,
					"attempt", r.attempts, "reason", err.Error())
				if challenge, err = lease.Session.RefreshChallenge(ctx); err != nil {
					return err
				}
				e.transition(ctx, r, StateChallengePending)
				continue
			}
			return fmt.Errorf("%w: %v", common.ErrChallengeSolveFailure, err)
		}

		ok, mismatch, err := lease.Session.SubmitAnswer(ctx, answer)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if mismatch {
			e.archiver.ArchiveChallenge(ctx, challenge.Image)
			if challenge, err = lease.Session.RefreshChallenge(ctx); err != nil {
				return err
			}
			e.transition(ctx, r, StateChallengePending)
			continue
		}
		return fmt.Errorf("%w: search rejected without mismatch", common.ErrChallengeSolveFailure)
	}

	return fmt.Errorf("%w: attempt ceiling %d reached", common.ErrChallengeSolveFailure, e.attemptCeiling)
}

// persist writes the run's outcome in one transaction: the merged snapshot,
// any entries not seen before, one notification per new entry, and the case
// linkage with its captured tokens.
func (e *Engine) persist(ctx context.Context, r *run, lease *pool.Lease,
	payload *portal.RawPayload, norm *normalized, method string) (int, *models.CaseSnapshot, error) {

	var tokens *capturedTokens
	if method == MethodScraper {
		tokens = e.captureTokens(ctx, r, lease)
	}

	newEntries := 0
	var written *models.CaseSnapshot
	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e.transition(ctx, r, StateDiffed)

		snapRepo := e.repos.Snapshots(tx)
		existing := &models.CaseSnapshot{BasicInfo: map[string]string{}}
		if snap, err := snapRepo.Get(ctx, r.req.CaseID); err == nil {
			existing = snap
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		// document and related-case lists are replaced by a fresh extraction;
		// an empty extraction keeps the stored lists, since the fallback
		// endpoint and a mid-render tab both produce none
		docs := snapshotDocuments(payload)
		if docs == nil {
			docs = existing.Documents
		}
		related := snapshotRelations(payload)
		if related == nil {
			related = existing.RelatedCases
		}

		written = &models.CaseSnapshot{
			CaseID:       r.req.CaseID,
			BasicInfo:    mergeBasicInfo(existing.BasicInfo, payload.BasicInfo),
			Documents:    docs,
			RelatedCases: related,
			ScrapedAt:    time.Now(),
		}
		if err := snapRepo.Upsert(ctx, written); err != nil {
			return err
		}

		entryRepo := e.repos.Entries(tx)
		notifRepo := e.repos.Notifications(tx)
		for _, entry := range norm.Entries {
			inserted, err := entryRepo.InsertIfAbsent(ctx, entry)
			if err != nil {
				return err
			}
			if !inserted {
				continue
			}
			newEntries++
			if err := notifRepo.Create(ctx, &models.ChangeNotification{
				ID:        uuid.NewString(),
				CaseID:    r.req.CaseID,
				EntryHash: entry.ContentHash,
				Summary:   entrySummary(entry),
			}); err != nil {
				return err
			}
		}

		return e.persistLinkage(ctx, tx, r, lease, tokens)
	})
	if err != nil {
		return 0, nil, err
	}
	return newEntries, written, nil
}

type capturedTokens struct {
	encCaseToken  string
	affinityToken string
}

// captureTokens reads the encrypted case token and affinity cookie off the
// live session. Best effort: a sync without tokens still succeeds, it just
// cannot use the structured endpoint later.
func (e *Engine) captureTokens(ctx context.Context, r *run, lease *pool.Lease) *capturedTokens {
	saved, err := lease.Session.SavedCases(ctx)
	if err != nil {
		e.logger.Warn(ctx, "token capture failed", "case", r.req.CaseID, "error", err)
		return nil
	}
	caseNo := portal.FormatCaseNumber(r.coords)
	var enc string
	for _, sc := range saved {
		if portal.NormalizeCaseNumber(sc.CaseNumber) == caseNo {
			enc = sc.EncCaseToken
			break
		}
	}
	if enc == "" {
		return nil
	}
	affinity, err := lease.Session.AffinityToken(ctx)
	if err != nil || affinity == "" {
		e.logger.Warn(ctx, "affinity cookie not captured", "case", r.req.CaseID)
		return nil
	}
	return &capturedTokens{encCaseToken: enc, affinityToken: affinity}
}

// persistLinkage creates the linkage on the case's first successful sync, or
// upgrades an existing one that was stored without tokens. A linkage is
// written complete or not at all: coordinates plus both tokens, since the
// structured endpoint needs the pair.
func (e *Engine) persistLinkage(ctx context.Context, tx dbx.DBTX, r *run, lease *pool.Lease, tokens *capturedTokens) error {
	linkRepo := e.repos.Linkages(tx)

	if r.linkage == nil {
		if tokens == nil {
			e.logger.Warn(ctx, "no tokens captured, linkage deferred", "case", r.req.CaseID)
			return nil
		}
		err := linkRepo.Create(ctx, &models.CaseLinkage{
			CaseID:       r.req.CaseID,
			CourtCode:    r.coords.CourtCode,
			CaseYear:     r.coords.Year,
			CaseType:     r.coords.CaseType,
			Serial:       r.coords.Serial,
			PartyName:    r.req.PartyName,
			EncCaseToken: tokens.encCaseToken,
			SessionToken: tokens.affinityToken,
			ProfileID:    lease.Profile.ID,
		})
		if errors.Is(err, common.ErrPersistenceConflict) {
			// another run linked the case first; theirs wins
			return nil
		}
		return err
	}

	if tokens != nil && (r.linkage.EncCaseToken != tokens.encCaseToken || r.linkage.SessionToken != tokens.affinityToken) {
		return linkRepo.UpdateTokens(ctx, r.req.CaseID, tokens.encCaseToken, tokens.affinityToken)
	}
	return nil
}
