// Package pool hands out browser sessions pinned to persistent profiles.
// Reservation is quota-safe: a profile is only leased while its committed
// case count plus in-flight reservations stays under its quota, and a
// profile is never leased to two syncs at once.
package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/portal"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/profiles"
	"github.com/google/uuid"
)

// Session is what a sync needs from an open browser session. Implemented by
// the browser package; narrowed here so the pool stays testable without a
// running Chrome.
type Session interface {
	Search(ctx context.Context, coords portal.Coordinates, partyName string) (challenge *portal.Challenge, stored bool, err error)
	SubmitAnswer(ctx context.Context, answer string) (ok bool, mismatch bool, err error)
	RefreshChallenge(ctx context.Context) (*portal.Challenge, error)
	OpenResult(ctx context.Context, coords portal.Coordinates) error
	ExtractBasicInfo(ctx context.Context) (map[string]string, error)
	ExtractProgress(ctx context.Context) (*portal.RawPayload, error)
	SavedCases(ctx context.Context) ([]SavedCase, error)
	AffinityToken(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
	Close()
}

// SavedCase mirrors the browser package's saved-case row.
type SavedCase struct {
	Court        string
	CourtCode    string
	CaseNumber   string
	CaseName     string
	EncCaseToken string
}

// OpenFunc launches a browser session on a profile.
type OpenFunc func(ctx context.Context, p *models.Profile) (Session, error)

// Lease is an exclusive grant of one profile and its open session.
type Lease struct {
	Profile *models.Profile
	Session Session
}

type Pool struct {
	repo        profiles.Repository
	open        OpenFunc
	profilesDir string
	maxCases    int
	logger      logging.Logger

	sem chan struct{}

	mu       sync.Mutex
	leased   map[string]bool
	sessions map[string]Session
	closed   bool
}

func New(repo profiles.Repository, open OpenFunc, profilesDir string, maxCases, parallelism int, logger logging.Logger) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Pool{
		repo:        repo,
		open:        open,
		profilesDir: profilesDir,
		maxCases:    maxCases,
		logger:      logger,
		sem:         make(chan struct{}, parallelism),
		leased:      make(map[string]bool),
		sessions:    make(map[string]Session),
	}
}

// Allocate reserves a profile with remaining quota and opens (or reuses) its
// browser session. When no profile has headroom a fresh one is provisioned.
// Blocks while the configured parallelism is saturated.
func (p *Pool) Allocate(ctx context.Context) (*Lease, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	lease, err := p.allocate(ctx)
	if err != nil {
		<-p.sem
		return nil, err
	}
	return lease, nil
}

func (p *Pool) allocate(ctx context.Context) (*Lease, error) {
	// Reservations taken on profiles this process already leased are held
	// until an unleased profile turns up, so retrying cannot hand back the
	// same profile forever.
	var held []string
	defer func() {
		for _, id := range held {
			_ = p.repo.Release(ctx, id, false)
		}
	}()

	for {
		profile, err := p.repo.Reserve(ctx)
		if errors.Is(err, common.ErrorNotFound) {
			profile, err = p.provision(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrAllocationFailure, err)
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = p.repo.Release(ctx, profile.ID, false)
			return nil, fmt.Errorf("%w: pool closed", common.ErrAllocationFailure)
		}
		if p.leased[profile.ID] {
			p.mu.Unlock()
			held = append(held, profile.ID)
			continue
		}
		p.leased[profile.ID] = true
		session := p.sessions[profile.ID]
		p.mu.Unlock()

		if session == nil {
			session, err = p.open(ctx, profile)
			if err != nil {
				p.failProfile(ctx, profile.ID)
				return nil, fmt.Errorf("%w: %v", common.ErrAllocationFailure, err)
			}
			p.mu.Lock()
			p.sessions[profile.ID] = session
			p.mu.Unlock()
		}

		p.logger.Debug(ctx, "profile leased", "profile", profile.Name, "cases", profile.CaseCount)
		return &Lease{Profile: profile, Session: session}, nil
	}
}

// provision creates a brand-new profile with its own user data dir. Failure
// anywhere leaves the profile out of rotation rather than half-usable.
func (p *Pool) provision(ctx context.Context) (*models.Profile, error) {
	id := uuid.NewString()
	profile := &models.Profile{
		ID:          id,
		Name:        "profile-" + id[:8],
		UserDataDir: filepath.Join(p.profilesDir, id),
		MaxCases:    p.maxCases,
		Status:      models.ProfileStatusActive,
	}

	if err := os.MkdirAll(profile.UserDataDir, 0o700); err != nil {
		return nil, fmt.Errorf("profile dir creation failed: %w", err)
	}
	if err := p.repo.Create(ctx, profile); err != nil {
		return nil, err
	}

	// the caller expects a reserved profile, same as Reserve would return
	reserved, err := p.repo.Reserve(ctx)
	if err != nil {
		p.failProfile(ctx, profile.ID)
		return nil, err
	}

	p.logger.Info(ctx, "provisioned new profile", "profile", profile.Name)
	return reserved, nil
}

func (p *Pool) failProfile(ctx context.Context, id string) {
	if err := p.repo.SetStatus(ctx, id, models.ProfileStatusCorrupted); err != nil {
		p.logger.Error(ctx, "could not retire profile", "profile", id, "error", err)
	}
	_ = p.repo.Release(ctx, id, false)
	p.mu.Lock()
	delete(p.leased, id)
	p.mu.Unlock()
}

// Release returns a lease. When synced is true the profile's case count is
// credited; a lease released after a failed sync keeps its quota untouched.
func (p *Pool) Release(ctx context.Context, lease *Lease, synced bool) error {
	defer func() { <-p.sem }()

	p.mu.Lock()
	delete(p.leased, lease.Profile.ID)
	p.mu.Unlock()

	if err := p.repo.Release(ctx, lease.Profile.ID, synced); err != nil {
		return fmt.Errorf("lease release failed: %w", err)
	}

	// a profile that just hit its quota will never be leased again, so its
	// browser can go
	if synced && lease.Profile.CaseCount+1 >= lease.Profile.MaxCases {
		p.mu.Lock()
		session := p.sessions[lease.Profile.ID]
		delete(p.sessions, lease.Profile.ID)
		p.mu.Unlock()
		if session != nil {
			session.Close()
		}
		p.logger.Info(ctx, "profile reached quota, session closed", "profile", lease.Profile.Name)
	}
	return nil
}

// Retire marks a lease's profile corrupted and closes its session. Used when
// the browser state is no longer trustworthy.
func (p *Pool) Retire(ctx context.Context, lease *Lease) {
	p.mu.Lock()
	session := p.sessions[lease.Profile.ID]
	delete(p.sessions, lease.Profile.ID)
	delete(p.leased, lease.Profile.ID)
	p.mu.Unlock()
	if session != nil {
		session.Close()
	}
	if err := p.repo.SetStatus(ctx, lease.Profile.ID, models.ProfileStatusCorrupted); err != nil {
		p.logger.Error(ctx, "could not retire profile", "profile", lease.Profile.ID, "error", err)
	}
	if err := p.repo.Release(ctx, lease.Profile.ID, false); err != nil {
		p.logger.Error(ctx, "could not release retired profile", "profile", lease.Profile.ID, "error", err)
	}
	<-p.sem
}

// Usage lists all profiles with their quota state.
func (p *Pool) Usage(ctx context.Context) ([]*models.Profile, error) {
	return p.repo.List(ctx)
}

// Close shuts down every open browser session. Outstanding leases keep
// their sessions until released.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	sessions := make([]Session, 0, len(p.sessions))
	for id, s := range p.sessions {
		if !p.leased[id] {
			sessions = append(sessions, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
