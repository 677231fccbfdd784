// Package server initializes and runs the synchronization service: it opens
// the database, migrates the schema, builds the profile pool, solver and
// sync engine, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/scourt/audit"
	"github.com/dmitrijs2005/courtsync/internal/scourt/browser"
	"github.com/dmitrijs2005/courtsync/internal/scourt/captcha"
	"github.com/dmitrijs2005/courtsync/internal/scourt/pool"
	"github.com/dmitrijs2005/courtsync/internal/scourt/portal"
	scourtsync "github.com/dmitrijs2005/courtsync/internal/scourt/sync"
	"github.com/dmitrijs2005/courtsync/internal/server/api"
	"github.com/dmitrijs2005/courtsync/internal/server/config"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/repomanager"
)

type App struct {
	config *config.Config
	logger logging.Logger
	pool   *pool.Pool
	server *api.Server
}

// browserSession adapts the rod-backed session to the pool's session
// interface; only the saved-case row type differs.
type browserSession struct {
	*browser.Session
}

func (s browserSession) SavedCases(ctx context.Context) ([]pool.SavedCase, error) {
	rows, err := s.Session.SavedCases(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pool.SavedCase, 0, len(rows))
	for _, r := range rows {
		out = append(out, pool.SavedCase{
			Court:        r.Court,
			CourtCode:    r.CourtCode,
			CaseNumber:   r.CaseNumber,
			CaseName:     r.CaseName,
			EncCaseToken: r.EncCaseToken,
		})
	}
	return out, nil
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	db, err := repomanager.OpenDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	driver := browser.NewDriver(c.Headless, logger)
	open := func(ctx context.Context, p *models.Profile) (pool.Session, error) {
		s, err := driver.Open(ctx, p)
		if err != nil {
			return nil, err
		}
		return browserSession{s}, nil
	}

	sessionPool := pool.New(rm.Profiles(db), open, c.ProfilesDir,
		c.MaxCasesPerProfile, c.PoolParallelism, logger)

	solver := captcha.NewSolver(captcha.Config{
		Endpoint:     c.VisionEndpoint,
		APIKey:       c.VisionAPIKey,
		Model:        c.VisionModel,
		AnswerLength: c.CaptchaAnswerLength,
		PerMinuteCap: c.VisionPerMinuteCap,
	}, logger)

	archiver, err := audit.New(context.Background(), c, logger)
	if err != nil {
		return nil, fmt.Errorf("audit init error: %w", err)
	}
	var engineArchiver scourtsync.Archiver
	if archiver != nil {
		engineArchiver = archiver
	}

	engine := scourtsync.NewEngine(db, rm, sessionPool, solver,
		portal.NewClient(portal.DefaultBaseURL, logger), engineArchiver,
		c.CaptchaAttemptCeiling, c.SyncBudget, logger)

	srv := api.NewServer(c.EndpointAddrHTTP, c.SecretKey, db, rm, engine, sessionPool, logger)

	return &App{config: c, logger: logger, pool: sessionPool, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.pool.Close()
}
