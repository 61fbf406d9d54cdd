// File: internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/config"
)

// Cookie is the subset of browser cookie state the login flow cares about.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Session is one isolated tab in its own browser context. All operations are
// bounded by both the session lifetime and the caller's context.
type Session struct {
	id      string
	logger  *zap.Logger
	cfg     *config.Config
	manager *Manager

	ctx              context.Context
	cancel           context.CancelFunc
	browserContextID cdp.BrowserContextID
	watcher          *Watcher

	mu       sync.Mutex
	isClosed bool
}

func newSession(sessionCtx context.Context, cancel context.CancelFunc, browserContextID cdp.BrowserContextID, m *Manager) *Session {
	id := uuid.New().String()
	s := &Session{
		id:               id,
		logger:           m.logger.With(zap.String("session_id", id)),
		cfg:              m.cfg,
		manager:          m,
		ctx:              sessionCtx,
		cancel:           cancel,
		browserContextID: browserContextID,
	}
	s.watcher = NewWatcher(sessionCtx, s.logger)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// run executes actions against the session tab, cancelled by whichever of the
// session context or the caller's context ends first.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL, waits for the document body, and then waits for the
// network to go quiet so post-load scripts and redirects can settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	navTimeout := s.cfg.Network.NavigationTimeout
	navCtx, cancelNav := context.WithTimeout(ctx, navTimeout)
	defer cancelNav()

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, navTimeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	// Stabilization is best-effort; a chatty page should not fail the account.
	settleCtx, cancelSettle := context.WithTimeout(ctx, navTimeout)
	defer cancelSettle()
	if err := s.WaitIdle(settleCtx, s.cfg.Network.PostLoadWait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("Page did not reach network idle after navigation.", zap.Error(err))
	}
	return nil
}

// WaitVisible waits until the element is visible, bounded by the element
// timeout.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.ElementTimeout)
	defer cancel()

	if err := s.run(waitCtx, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		return fmt.Errorf("element %q did not become visible: %w", selector, err)
	}
	return nil
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element.", zap.String("selector", selector))

	opt := queryOption(selector)
	clickCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.ElementTimeout)
	defer cancel()

	err := s.run(clickCtx,
		chromedp.ScrollIntoView(selector, opt),
		chromedp.WaitVisible(selector, opt),
		chromedp.Click(selector, opt),
	)
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// Type fills the element with text, replacing any existing value.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.logger.Debug("Typing into element.",
		zap.String("selector", selector), zap.Int("text_length", len(text)))

	opt := queryOption(selector)
	typeCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.ElementTimeout)
	defer cancel()

	err := s.run(typeCtx,
		chromedp.ScrollIntoView(selector, opt),
		chromedp.WaitVisible(selector, opt),
		chromedp.Clear(selector, opt),
		chromedp.SendKeys(selector, text, opt),
	)
	if err != nil {
		return fmt.Errorf("type failed for selector %q: %w", selector, err)
	}
	return nil
}

// WaitIdle blocks until no network request has been in flight for the quiet
// period, or the context ends.
func (s *Session) WaitIdle(ctx context.Context, quiet time.Duration) error {
	return s.watcher.WaitIdle(ctx, quiet)
}

// Cookies returns the cookies of this session's isolated browser context.
func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) (err error) {
		raw, err = storage.GetCookies().WithBrowserContextID(s.browserContextID).Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

// LocalStorage returns the page's localStorage key/value pairs. Access errors
// inside the page yield an empty map, not a failure.
func (s *Session) LocalStorage(ctx context.Context) (map[string]string, error) {
	const script = `(function() {
		const out = {};
		try {
			for (let i = 0; i < localStorage.length; i++) {
				const k = localStorage.key(i);
				out[k] = localStorage.getItem(k);
			}
		} catch (e) {}
		return out;
	})()`

	var items map[string]string
	if err := s.run(ctx, chromedp.Evaluate(script, &items)); err != nil {
		return nil, fmt.Errorf("failed to read localStorage: %w", err)
	}
	return items, nil
}

// EvalJSON evaluates the expression in the page, awaiting promise results, and
// returns the raw JSON encoding of the value.
func (s *Session) EvalJSON(ctx context.Context, expr string) ([]byte, error) {
	var raw json.RawMessage
	err := s.run(ctx, chromedp.Evaluate(expr, &raw,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, fmt.Errorf("page evaluation failed: %w", err)
	}
	return raw, nil
}

// Close tears down the tab and disposes its browser context. Safe to call more
// than once; only the first call does the work.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing session.")
	s.watcher.Stop()

	if s.cancel != nil {
		s.cancel()
	}
	s.manager.disposeBrowserContext(ctx, s.browserContextID)
	s.manager.wg.Done()
}

// queryOption picks the chromedp query mode from the selector's shape: XPath
// expressions start with "/" or "(", everything else is treated as CSS.
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// combineContext derives an operation context from primary that is also
// cancelled when other ends.
func combineContext(primary, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
