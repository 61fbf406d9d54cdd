// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/loks666/anyrouter-autolog/internal/config"
	"github.com/loks666/anyrouter-autolog/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "anyrouter-autolog",
	Short: "Batch session harvesting for anyrouter.top accounts.",
	Long: `anyrouter-autolog drives a controlled headless browser through the
anyrouter.top login flow for every configured account and saves the resulting
session cookie and api_user identifier for reuse by API clients.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config and logging.
		if err := initializeConfig(cmd); err != nil {
			return err
		}

		loaded, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Fall back to a minimal logger so the failure is still reported.
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "anyrouter-autolog",
			})
			return err
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting anyrouter-autolog.", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it under the
// given base context. A non-nil return means the process should exit non-zero.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	observability.Sync()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads in the config file and ENV variables if set, and
// binds the invoked command's flags over them.
func initializeConfig(cmd *cobra.Command) error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ANYROUTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		viper.Set("logger.level", f.Value.String())
	}

	// Flags beat env and config file values.
	for flagName, key := range flagBindings {
		if f := cmd.Flags().Lookup(flagName); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %q: %w", flagName, err)
			}
		}
	}
	return nil
}
