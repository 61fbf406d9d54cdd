// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/config"
)

const (
	launchProbeTimeout = 30 * time.Second
	disposeTimeout     = 5 * time.Second
)

// Manager owns the lifecycle of the single headless browser process. Accounts
// never get their own process; they share this one and are isolated from each
// other by dedicated browser contexts created per session.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	// allocatorCtx manages the browser process. Everything else derives from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// controllerCtx is the chromedp context attached to the browser itself,
	// used for target-level CDP commands (context creation and disposal).
	controllerCtx    context.Context
	controllerCancel context.CancelFunc

	// Serializes browser context creation; CDP misbehaves under concurrent
	// CreateBrowserContext calls.
	contextCreationMu sync.Mutex

	// wg tracks live sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it is responsive.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launch(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launch prepares allocator options and starts the headless browser process.
func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancelAlloc

	controllerCtx, cancelController := chromedp.NewContext(allocCtx)
	m.controllerCtx = controllerCtx
	m.controllerCancel = cancelController

	// Confirm the process starts and responds before any account touches it.
	probeCtx, cancelProbe := context.WithTimeout(controllerCtx, launchProbeTimeout)
	defer cancelProbe()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cancelController()
		cancelAlloc()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.",
		zap.Bool("headless", m.cfg.Browser.Headless))
	return nil
}

// browserFlag is one Chrome command-line flag. Flags are assembled as data
// first so the set stays inspectable; allocator options are opaque funcs.
type browserFlag struct {
	name  string
	value any
}

// flagSet assembles the flags for a stealthy, configurable browser instance.
// Later entries override the allocator defaults of the same name.
func (m *Manager) flagSet() []browserFlag {
	flags := []browserFlag{
		// The defaults enable the automation banner; a false value removes
		// the flag entirely.
		{"enable-automation", false},
		{"headless", m.cfg.Browser.Headless},
		// Keeps navigator.webdriver from giving the game away.
		{"disable-blink-features", "AutomationControlled"},
		{"disable-extensions", true},
		{"disable-gpu", m.cfg.Browser.Headless},
	}

	// Custom arguments from config.yaml.
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags = append(flags, browserFlag{name, parts[1]})
		} else {
			flags = append(flags, browserFlag{name, true})
		}
	}

	// Required when running inside containers.
	if runtime.GOOS == "linux" {
		flags = append(flags,
			browserFlag{"no-sandbox", true},
			browserFlag{"disable-dev-shm-usage", true},
			browserFlag{"disable-setuid-sandbox", true},
		)
	}

	return flags
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range m.flagSet() {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
	return opts
}

// NewSession creates a fully isolated browser context and tab. The caller must
// Close the session on every exit path.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.contextCreationMu.Lock()
	defer m.contextCreationMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before creating session: %w", err)
	}

	var (
		browserContextID cdp.BrowserContextID
		targetID         target.ID
	)
	err := chromedp.Run(m.controllerCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		browserContextID, err = target.CreateBrowserContext().Do(c)
		if err != nil {
			return fmt.Errorf("failed to create browser context: %w", err)
		}
		targetID, err = target.CreateTarget("about:blank").
			WithBrowserContextID(browserContextID).
			Do(c)
		if err != nil {
			m.disposeBrowserContext(ctx, browserContextID)
			return fmt.Errorf("failed to create target: %w", err)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	sessionCtx, cancelSession := chromedp.NewContext(m.controllerCtx, chromedp.WithTargetID(targetID))

	m.wg.Add(1)
	s := newSession(sessionCtx, cancelSession, browserContextID, m)

	if err := s.watcher.Start(); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to start network watcher: %w", err)
	}

	s.logger.Debug("Session initialized in isolated browser context.",
		zap.String("browser_context_id", string(browserContextID)))
	return s, nil
}

// disposeBrowserContext is best-effort; an orphaned context dies with the
// browser process anyway.
func (m *Manager) disposeBrowserContext(ctx context.Context, id cdp.BrowserContextID) {
	if m.controllerCtx.Err() != nil {
		return
	}
	opCtx, cancel := combineContext(m.controllerCtx, ctx)
	defer cancel()
	opCtx, cancelTimeout := context.WithTimeout(opCtx, disposeTimeout)
	defer cancelTimeout()

	if err := chromedp.Run(opCtx, target.DisposeBrowserContext(id)); err != nil {
		if m.controllerCtx.Err() == nil {
			m.logger.Warn("Failed to dispose of browser context. It may be orphaned.",
				zap.String("browser_context_id", string(id)), zap.Error(err))
		}
	}
}

// Shutdown waits for active sessions to close and terminates the browser
// process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.controllerCancel != nil {
		m.controllerCancel()
	}
	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down browser process...")
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
