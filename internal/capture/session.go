package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Page is a single tab inside a BrowsingContext.
type Page interface {
	// Goto navigates and returns once the navigation is committed. The status is
	// nil when no response was received.
	Goto(url string, timeout time.Duration) (*int, error)
	WaitForLoadState(state LoadState, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error
	Screenshot(fullPage bool) ([]byte, error)
	Close() error
}

type BrowsingContext interface {
	NewPage() (Page, error)
	Close() error
}

type ContextOptions struct {
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool
	ExtraHTTPHeaders  map[string]string
	HTTPCredentials   *BasicAuth
}

type Browser interface {
	NewContext(options ContextOptions) (BrowsingContext, error)
	IsConnected() bool
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Session owns the one browser process shared by every capture.
type Session struct {
	launcher Launcher
	log      logr.Logger

	launch  singleflight.Group
	mu      sync.RWMutex
	browser Browser

	liveMu sync.Mutex
	live   int
}

func NewSession(launcher Launcher, logger logr.Logger) *Session {
	return &Session{
		launcher: launcher,
		log:      logger,
	}
}

// Initialize launches the browser unless it is already running. Concurrent
// callers share the outcome of the one launch in flight, failure included.
func (s *Session) Initialize(ctx context.Context) error {
	if s.ready() {
		return nil
	}

	_, err, _ := s.launch.Do("browser", func() (any, error) {
		if s.ready() {
			return nil, nil
		}

		s.log.Info("launching browser")
		browser, err := s.launcher.Launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to launch browser, make sure chromium is installed (playwright install chromium): %w", ErrBrowserUnavailable, err)
		}

		s.mu.Lock()
		s.browser = browser
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

func (s *Session) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.browser != nil
}

func (s *Session) NewIsolatedContext(width int, height int, options ContextOptions) (BrowsingContext, error) {
	s.mu.RLock()
	browser := s.browser
	s.mu.RUnlock()

	if browser == nil {
		return nil, fmt.Errorf("%w: session is not initialized", ErrBrowserUnavailable)
	}
	if !browser.IsConnected() {
		return nil, fmt.Errorf("%w: browser is no longer connected", ErrBrowserUnavailable)
	}

	options.ViewportWidth = width
	options.ViewportHeight = height
	options.IgnoreHTTPSErrors = true

	c, err := browser.NewContext(options)
	if err != nil {
		return nil, err
	}

	s.liveMu.Lock()
	s.live++
	s.liveMu.Unlock()

	return &trackedContext{BrowsingContext: c, session: s}, nil
}

// LiveContexts reports how many contexts handed out by the session are still open.
func (s *Session) LiveContexts() int {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	return s.live
}

func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	browser := s.browser
	s.browser = nil

	s.log.Info("closing browser")
	if err := browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type trackedContext struct {
	BrowsingContext
	session *Session
	once    sync.Once
}

func (t *trackedContext) Close() error {
	err := t.BrowsingContext.Close()
	t.once.Do(func() {
		t.session.liveMu.Lock()
		t.session.live--
		t.session.liveMu.Unlock()
	})
	return err
}
