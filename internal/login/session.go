// File: internal/login/session.go
package login

import (
	"context"
	"time"

	"github.com/loks666/anyrouter-autolog/internal/browser"
)

// Session is the slice of browser capability the login flow needs. The
// production implementation lives in internal/browser; tests substitute fakes.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	WaitIdle(ctx context.Context, quiet time.Duration) error
	Cookies(ctx context.Context) ([]browser.Cookie, error)
	LocalStorage(ctx context.Context) (map[string]string, error)
	EvalJSON(ctx context.Context, expr string) ([]byte, error)
	Close(ctx context.Context)
}

// SessionFactory opens a fresh isolated session for one account.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
