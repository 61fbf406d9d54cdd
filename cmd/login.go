// File: cmd/login.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/browser"
	"github.com/loks666/anyrouter-autolog/internal/config"
	"github.com/loks666/anyrouter-autolog/internal/login"
	"github.com/loks666/anyrouter-autolog/internal/notify"
	"github.com/loks666/anyrouter-autolog/internal/observability"
	"github.com/loks666/anyrouter-autolog/internal/results"
)

const shutdownTimeout = 30 * time.Second

// flagBindings maps login command flags onto their viper keys.
var flagBindings = map[string]string{
	"input":    "accounts.input_path",
	"output":   "accounts.output_path",
	"base-url": "provider.base_url",
	"headless": "browser.headless",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in every configured account and save its session state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd.Context())
	},
}

func init() {
	loginCmd.Flags().StringP("input", "i", "", "accounts file (JSON array of username/password records)")
	loginCmd.Flags().StringP("output", "o", "", "results file")
	loginCmd.Flags().String("base-url", "", "provider base URL")
	loginCmd.Flags().Bool("headless", true, "run the browser headless")
	rootCmd.AddCommand(loginCmd)
}

// sessionFactory adapts the browser manager to the login runner's interface.
type sessionFactory struct {
	manager *browser.Manager
}

func (f sessionFactory) NewSession(ctx context.Context) (login.Session, error) {
	s, err := f.manager.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func runLogin(ctx context.Context) error {
	logger := observability.GetLogger()

	// Input problems are fatal before any login; no output file is written.
	accounts, err := config.LoadAccounts(cfg.Accounts.InputPath, logger)
	if err != nil {
		return err
	}
	logger.Info("Accounts loaded.",
		zap.Int("count", len(accounts)), zap.String("input", cfg.Accounts.InputPath))

	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	runner := login.NewRunner(logger, cfg, sessionFactory{manager: manager})
	records, err := runner.Run(ctx, accounts)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	if err := results.Write(cfg.Accounts.OutputPath, records); err != nil {
		return err
	}
	logger.Info("Results written.",
		zap.String("output", cfg.Accounts.OutputPath), zap.Int("records", len(records)))

	if notifier := notify.New(logger, cfg.Notify); notifier.Enabled() {
		// The run context may already be torn down; give notifications their
		// own bounded one.
		notifyCtx, cancel := context.WithTimeout(context.Background(), cfg.Notify.Timeout)
		defer cancel()
		notifier.Send(notifyCtx, "anyrouter 登录结果", notify.Summary(records))
	}
	return nil
}
