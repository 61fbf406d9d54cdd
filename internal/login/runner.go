// File: internal/login/runner.go
package login

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/config"
	"github.com/loks666/anyrouter-autolog/internal/results"
)

// Selectors on the anyrouter login page.
const (
	usernameSelector = `input[name="username"]`
	passwordSelector = `input[name="password"]`
	submitSelector   = `button[type="submit"]`

	// Union of the known announcement-dialog close buttons. The dialog being
	// absent is the common case.
	dialogCloseSelector = `//button[contains(., "今日关闭")] | //button[contains(., "关闭公告")] | //*[contains(@class, "semi-modal-close")]`

	dialogDismissTimeout = 3 * time.Second
)

// Runner drives the batch login flow, strictly one account at a time.
type Runner struct {
	logger  *zap.Logger
	cfg     *config.Config
	factory SessionFactory
}

// NewRunner builds a runner.
func NewRunner(logger *zap.Logger, cfg *config.Config, factory SessionFactory) *Runner {
	return &Runner{
		logger:  logger.Named("login"),
		cfg:     cfg,
		factory: factory,
	}
}

// Run processes every account in input order and returns one result per
// account. Per-account failures degrade that account's record and the run
// continues; only context cancellation stops the loop. No retries.
func (r *Runner) Run(ctx context.Context, accounts []config.Account) ([]results.Result, error) {
	out := make([]results.Result, 0, len(accounts))

	for i, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		r.logger.Info("Processing account.",
			zap.Int("position", i+1), zap.Int("total", len(accounts)), zap.String("name", acct.Name))
		out = append(out, r.processAccount(ctx, acct))

		// Fixed pause after each account except the last, however long the
		// account itself took.
		if i < len(accounts)-1 {
			if err := r.pause(ctx); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}

// pause blocks for the configured inter-account delay, honoring cancellation.
func (r *Runner) pause(ctx context.Context) error {
	delay := r.cfg.Accounts.Delay
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// processAccount runs the full flow for one account. The returned record is
// constructed only after extraction has finished; any failure along the way
// yields a record with empty session fields.
func (r *Runner) processAccount(ctx context.Context, acct config.Account) results.Result {
	logger := r.logger.With(zap.String("name", acct.Name))

	state, err := r.login(ctx, acct)
	if err != nil {
		logger.Warn("Login failed; recording empty result.", zap.Error(err))
		return results.Failed(acct.Name, acct.Provider)
	}

	if state.Successful() {
		logger.Info("Account processed.",
			zap.Bool("session_cookie", state.SessionCookie != ""),
			zap.String("api_user", state.APIUser))
	} else {
		logger.Warn("Login completed but produced no session cookie or api_user id.")
	}
	return results.New(acct.Name, acct.Provider, state.APIUser, state.SessionCookie)
}

func (r *Runner) login(ctx context.Context, acct config.Account) (SessionState, error) {
	var state SessionState

	sess, err := r.factory.NewSession(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close(ctx)

	if err := sess.Navigate(ctx, r.cfg.Provider.LoginURL()); err != nil {
		return state, err
	}

	r.dismissDialog(ctx, sess)

	if err := sess.WaitVisible(ctx, usernameSelector); err != nil {
		return state, fmt.Errorf("login form not found: %w", err)
	}
	if err := sess.Type(ctx, usernameSelector, acct.Username); err != nil {
		return state, err
	}
	if err := sess.Type(ctx, passwordSelector, acct.Password); err != nil {
		return state, err
	}
	if err := sess.Click(ctx, submitSelector); err != nil {
		return state, err
	}

	// Let the post-submit redirect settle before reading session state.
	settleCtx, cancel := context.WithTimeout(ctx, r.cfg.Network.NavigationTimeout)
	defer cancel()
	if err := sess.WaitIdle(settleCtx, r.cfg.Network.PostLoadWait); err != nil {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		r.logger.Debug("Network did not go idle after submit; extracting anyway.", zap.Error(err))
	}

	return r.extractState(ctx, sess)
}

// dismissDialog closes the announcement modal when one is shown. Best-effort;
// its absence is not an error.
func (r *Runner) dismissDialog(ctx context.Context, sess Session) {
	dialogCtx, cancel := context.WithTimeout(ctx, dialogDismissTimeout)
	defer cancel()

	if err := sess.Click(dialogCtx, dialogCloseSelector); err != nil {
		r.logger.Debug("No announcement dialog to dismiss.", zap.Error(err))
	}
}
