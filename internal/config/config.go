// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Accounts AccountsConfig `mapstructure:"accounts" yaml:"accounts"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser process.
type BrowserConfig struct {
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args      []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes the waits around browser-driven navigation.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ProviderConfig describes the target service's login surface.
type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath     string `mapstructure:"login_path" yaml:"login_path"`
	UserInfoPath  string `mapstructure:"user_info_path" yaml:"user_info_path"`
	SessionCookie string `mapstructure:"session_cookie" yaml:"session_cookie"`
}

// LoginURL returns the absolute login page URL.
func (p ProviderConfig) LoginURL() string {
	return p.BaseURL + p.LoginPath
}

// UserInfoURL returns the absolute user-info endpoint URL.
func (p ProviderConfig) UserInfoURL() string {
	return p.BaseURL + p.UserInfoPath
}

// AccountsConfig controls the batch run: input/output files and the pause
// inserted between accounts to avoid tripping rate limits.
type AccountsConfig struct {
	InputPath  string        `mapstructure:"input_path" yaml:"input_path"`
	OutputPath string        `mapstructure:"output_path" yaml:"output_path"`
	Delay      time.Duration `mapstructure:"delay" yaml:"delay"`
}

// NotifyConfig holds the optional run-summary notification channels. A channel
// with an empty token/webhook/address is skipped.
type NotifyConfig struct {
	Email           EmailConfig   `mapstructure:"email" yaml:"email"`
	PushPlusToken   string        `mapstructure:"pushplus_token" yaml:"-"`
	ServerChanKey   string        `mapstructure:"serverchan_key" yaml:"-"`
	DingTalkWebhook string        `mapstructure:"dingtalk_webhook" yaml:"-"`
	FeishuWebhook   string        `mapstructure:"feishu_webhook" yaml:"-"`
	WeComWebhook    string        `mapstructure:"wecom_webhook" yaml:"-"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EmailConfig defines the SMTP channel.
type EmailConfig struct {
	User       string `mapstructure:"user" yaml:"user"`
	Password   string `mapstructure:"password" yaml:"-"`
	To         string `mapstructure:"to" yaml:"to"`
	SMTPServer string `mapstructure:"smtp_server" yaml:"smtp_server"`
}

// DefaultProvider is the canonical provider name substituted for records that
// leave the field empty.
const DefaultProvider = "anyrouter.top"

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "anyrouter-autolog")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.element_timeout", "10s")
	v.SetDefault("network.post_load_wait", "3s")

	// -- Provider --
	v.SetDefault("provider.base_url", "https://anyrouter.top")
	v.SetDefault("provider.login_path", "/login")
	v.SetDefault("provider.user_info_path", "/api/user/info")
	v.SetDefault("provider.session_cookie", "session")

	// -- Accounts --
	v.SetDefault("accounts.input_path", "user.json")
	v.SetDefault("accounts.output_path", "anyrouter_accounts.json")
	v.SetDefault("accounts.delay", "2s")

	// -- Notify --
	v.SetDefault("notify.timeout", "30s")
}

// NewConfigFromViper builds and validates a Config from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Notification secrets keep the env names the sibling check-in tooling
	// already uses.
	v.BindEnv("notify.email.user", "EMAIL_USER")
	v.BindEnv("notify.email.password", "EMAIL_PASS")
	v.BindEnv("notify.email.to", "EMAIL_TO")
	v.BindEnv("notify.email.smtp_server", "CUSTOM_SMTP_SERVER")
	v.BindEnv("notify.pushplus_token", "PUSHPLUS_TOKEN")
	v.BindEnv("notify.serverchan_key", "SERVERPUSHKEY")
	v.BindEnv("notify.dingtalk_webhook", "DINGDING_WEBHOOK")
	v.BindEnv("notify.feishu_webhook", "FEISHU_WEBHOOK")
	v.BindEnv("notify.wecom_webhook", "WEIXIN_WEBHOOK")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" in user-supplied file paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Accounts.InputPath, &c.Accounts.OutputPath, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Provider.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider.base_url must be an absolute URL, got %q", c.Provider.BaseURL)
	}
	if c.Provider.SessionCookie == "" {
		return fmt.Errorf("provider.session_cookie must not be empty")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.Network.ElementTimeout <= 0 {
		return fmt.Errorf("network.element_timeout must be a positive duration")
	}
	if c.Network.PostLoadWait < 0 {
		return fmt.Errorf("network.post_load_wait must not be negative")
	}
	if c.Accounts.Delay < 0 {
		return fmt.Errorf("accounts.delay must not be negative")
	}
	if c.Accounts.InputPath == "" || c.Accounts.OutputPath == "" {
		return fmt.Errorf("accounts.input_path and accounts.output_path are required")
	}
	return nil
}
