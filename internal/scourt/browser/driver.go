// Package browser drives the court portal through a real Chrome instance.
// Each session is pinned to one browser profile directory, because the
// portal binds saved cases to the profile's affinity cookie.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultWaitTimeout = 20 * time.Second
	viewportWidth      = 1280
	viewportHeight     = 900
)

// Driver launches portal sessions. One Driver is shared by the whole pool;
// it only carries launch options.
type Driver struct {
	headless    bool
	waitTimeout time.Duration
	logger      logging.Logger
}

func NewDriver(headless bool, logger logging.Logger) *Driver {
	return &Driver{headless: headless, waitTimeout: defaultWaitTimeout, logger: logger}
}

// Open launches Chrome on the profile's user data dir and navigates to the
// portal search tab. The caller owns the returned session and must Close it.
func (d *Driver) Open(ctx context.Context, profile *models.Profile) (*Session, error) {
	l := launcher.New().
		Headless(d.headless).
		Set("user-data-dir", profile.UserDataDir).
		Set("lang", "ko-KR").
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser connect failed: %w", err)
	}

	s := &Session{
		browser:     b,
		launcher:    l,
		profile:     profile,
		waitTimeout: d.waitTimeout,
		logger:      d.logger,
	}
	if err := s.openPortalTab(ctx); err != nil {
		s.Close()
		return nil, err
	}

	d.logger.Info(ctx, "portal session opened", "profile", profile.Name)
	return s, nil
}

func (s *Session) openPortalTab(ctx context.Context) error {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("tab open failed: %w", err)
	}
	page = page.Context(ctx)

	if _, err := page.EvalOnNewDocument(jsAlertHook); err != nil {
		return fmt.Errorf("alert hook failed: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		return fmt.Errorf("viewport setup failed: %w", err)
	}

	if err := page.Navigate(portalURL); err != nil {
		return fmt.Errorf("portal navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("portal load failed: %w", err)
	}
	if err := s.waitVisible(page, selSearchButton); err != nil {
		return err
	}

	s.page = page
	return nil
}
