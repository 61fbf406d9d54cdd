// File: internal/browser/watcher.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Watcher tracks in-flight network requests for one session so waits can key
// off real activity instead of fixed sleeps.
type Watcher struct {
	logger     *zap.Logger
	sessionCtx context.Context

	// A separate context for the event listener so it can be stopped cleanly.
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock     sync.RWMutex
	inflight map[network.RequestID]struct{}
	started  bool
}

// NewWatcher creates a network watcher bound to a session context.
func NewWatcher(sessionCtx context.Context, logger *zap.Logger) *Watcher {
	return &Watcher{
		sessionCtx: sessionCtx,
		logger:     logger.Named("watcher"),
		inflight:   make(map[network.RequestID]struct{}),
	}
}

// Start enables network events on the target and begins tracking requests.
func (w *Watcher) Start() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.started {
		return nil
	}

	// Derived from the session, so the listener dies with it.
	w.listenerCtx, w.cancelListener = context.WithCancel(w.sessionCtx)

	chromedp.ListenTarget(w.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			w.track(e.RequestID)
		case *network.EventLoadingFinished:
			w.untrack(e.RequestID)
		case *network.EventLoadingFailed:
			w.untrack(e.RequestID)
		}
	})

	if err := chromedp.Run(w.sessionCtx, network.Enable()); err != nil {
		w.cancelListener()
		w.cancelListener = nil
		return err
	}

	w.started = true
	w.logger.Debug("Network watcher started.")
	return nil
}

func (w *Watcher) track(id network.RequestID) {
	w.lock.Lock()
	w.inflight[id] = struct{}{}
	w.lock.Unlock()
}

func (w *Watcher) untrack(id network.RequestID) {
	w.lock.Lock()
	delete(w.inflight, id)
	w.lock.Unlock()
}

// WaitIdle polls until no request has been in flight for the quiet period, or
// the context ends.
func (w *Watcher) WaitIdle(ctx context.Context, quietPeriod time.Duration) error {
	if quietPeriod <= 0 {
		return nil
	}

	// Check more frequently than the quiet period itself; floored so a tiny
	// quiet period cannot produce a non-positive tick interval.
	tick := quietPeriod / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("WaitIdle aborted.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			w.lock.RLock()
			inflight := len(w.inflight)
			w.lock.RUnlock()

			if inflight > 0 {
				lastActivity = time.Now()
				w.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflight))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}

// Stop halts event tracking. Idempotent.
func (w *Watcher) Stop() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.cancelListener != nil {
		w.cancelListener()
		w.cancelListener = nil
	}
	w.started = false
}
