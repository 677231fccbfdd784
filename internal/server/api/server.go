// Package api exposes the synchronization engine over HTTP. Every route
// except the health check requires a bearer token signed with the server
// secret.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/sync"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/repomanager"
)

const shutdownTimeout = 10 * time.Second

// Syncer runs one case synchronization.
type Syncer interface {
	Sync(ctx context.Context, req sync.Request) (*sync.Result, error)
}

// ProfileLister reports pool usage.
type ProfileLister interface {
	Usage(ctx context.Context) ([]*models.Profile, error)
}

type Server struct {
	addr      string
	secretKey []byte
	db        *sql.DB
	repos     repomanager.RepositoryManager
	syncer    Syncer
	profiles  ProfileLister
	logger    logging.Logger
}

func NewServer(addr, secretKey string, db *sql.DB, repos repomanager.RepositoryManager,
	syncer Syncer, profiles ProfileLister, logger logging.Logger) *Server {
	return &Server{
		addr:      addr,
		secretKey: []byte(secretKey),
		db:        db,
		repos:     repos,
		syncer:    syncer,
		profiles:  profiles,
		logger:    logger,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/cases/{id}/refresh", s.authorized(s.handleRefresh))
	mux.Handle("GET /api/cases/{id}/snapshot", s.authorized(s.handleSnapshot))
	mux.Handle("POST /api/notifications/{id}/read", s.authorized(s.handleMarkRead))
	mux.Handle("GET /api/profiles", s.authorized(s.handleProfiles))

	return mux
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
