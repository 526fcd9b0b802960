// Package config loads categorywatch settings from an optional YAML file and CATWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config errors
var (
	ErrMissingBaseURL      = errors.New("wiki base_url is required")
	ErrInvalidSender       = errors.New("system_sender_address must be a valid address")
	ErrMissingHookSecret   = errors.New("hook_secret is required in production")
	ErrInvalidParallelism  = errors.New("max_parallel_categories must be at least 1")
	ErrInvalidSendRate     = errors.New("send_rate_per_second cannot be negative")
	ErrInvalidLocation     = errors.New("server_timezone is not a known zone")
	ErrInvalidArticlePath  = errors.New("article_path must contain $1")
	ErrInvalidHookRateRule = errors.New("hook_rate_limit must be positive")
)

// Config is the full service configuration.
type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Wiki          WikiConfig          `yaml:"wiki"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Mail          MailConfig          `yaml:"mail"`
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
}

// WikiConfig describes the wiki whose edits are reported.
type WikiConfig struct {
	BaseURL         string `yaml:"base_url"`
	ArticlePath     string `yaml:"article_path"`
	ScriptPath      string `yaml:"script_path"`
	SiteName        string `yaml:"site_name"`
	ContentLanguage string `yaml:"content_language"`
	HelpPageURL     string `yaml:"help_page_url"`
	ServerTimezone  string `yaml:"server_timezone"`
}

// NotificationsConfig holds the category-watch behaviour switches.
type NotificationsConfig struct {
	NotifyEditorOfOwnChange   bool `yaml:"notify_editor_of_own_change"`
	UseAutoWatchCategory      bool `yaml:"use_auto_watch_category"`
	AutoWatchUseRealName      bool `yaml:"auto_watch_use_real_name"`
	RevealEditorAddress       bool `yaml:"reveal_editor_address"`
	// FromIsEditorWhenRevealed puts the editor's own address in From instead of Reply-To.
	// Relays that only send for verified domains, Resend among them, reject those messages,
	// so leave it off unless every editor address is on a domain the relay may send for.
	FromIsEditorWhenRevealed  bool `yaml:"from_is_editor_when_revealed"`
	UseRealNameInNotification bool `yaml:"use_real_name_in_notification"`
	MaxParallelCategories     int  `yaml:"max_parallel_categories"`
}

// MailConfig configures the transport and the sender identity.
type MailConfig struct {
	SystemSenderAddress string        `yaml:"system_sender_address"`
	SystemSenderName    string        `yaml:"system_sender_name"`
	NoReplyAddress      string        `yaml:"no_reply_address"`
	ResendAPIKey        string        `yaml:"resend_api_key"`
	SendTimeout         time.Duration `yaml:"send_timeout"`
	SendRatePerSecond   float64       `yaml:"send_rate_per_second"` // 0 disables throttling
	SendBurst           int           `yaml:"send_burst"`
}

// HTTPConfig configures the edit hook listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	HookSecret      string        `yaml:"hook_secret"`
	HookRateLimit   int           `yaml:"hook_rate_limit"` // requests per window per client IP
	HookRateWindow  time.Duration `yaml:"hook_rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig points at the SQLite database holding the wiki tables.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	SeedDemo bool   `yaml:"seed_demo"` // development only
}

// DefaultConfig returns the settings used when nothing is configured.
// The notification switches mirror the wiki extension's defaults.
func DefaultConfig() Config {
	return Config{
		Env:      EnvDevelopment,
		LogLevel: "info",
		Wiki: WikiConfig{
			BaseURL:         "http://localhost:8081",
			ArticlePath:     "/wiki/$1",
			ScriptPath:      "/index.php",
			SiteName:        "Wiki",
			ContentLanguage: "en",
			HelpPageURL:     "https://www.mediawiki.org/wiki/Special:MyLanguage/Help:Contents",
			ServerTimezone:  "UTC",
		},
		Notifications: NotificationsConfig{
			NotifyEditorOfOwnChange: true,
			MaxParallelCategories:   1,
		},
		Mail: MailConfig{
			SystemSenderAddress: "wiki@localhost",
			SystemSenderName:    "WikiAdmin",
			NoReplyAddress:      "noreply@localhost",
			SendTimeout:         10 * time.Second,
			SendRatePerSecond:   2,
			SendBurst:           5,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			HookRateLimit:   120,
			HookRateWindow:  time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "categorywatch.db",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if path is non-empty),
// then CATWATCH_* environment overrides, then validation.
// PRE: none
// POST: Returns a validated Config or the first problem found
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Warnings lists settings that are valid but likely to misbehave at runtime.
func (c Config) Warnings() []string {
	var out []string
	if c.Notifications.RevealEditorAddress && c.Notifications.FromIsEditorWhenRevealed && c.Mail.ResendAPIKey != "" {
		out = append(out, "from_is_editor_when_revealed sends From the editor's address; Resend rejects senders outside verified domains")
	}
	return out
}

// Location returns the server time zone used for recipients without a time correction.
// PRE: Validate succeeded
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Wiki.ServerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the configuration for values the service cannot run with.
// PRE: none
// POST: Returns nil if valid, the joined problems otherwise
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Wiki.BaseURL) == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if c.Wiki.ArticlePath != "" && !strings.Contains(c.Wiki.ArticlePath, "$1") {
		errs = append(errs, ErrInvalidArticlePath)
	}
	if _, err := time.LoadLocation(c.Wiki.ServerTimezone); err != nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidLocation, c.Wiki.ServerTimezone))
	}
	if _, err := mail.ParseAddress(c.Mail.SystemSenderAddress); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSender, err))
	}
	if c.Notifications.MaxParallelCategories < 1 {
		errs = append(errs, ErrInvalidParallelism)
	}
	if c.Mail.SendRatePerSecond < 0 {
		errs = append(errs, ErrInvalidSendRate)
	}
	if c.HTTP.HookRateLimit <= 0 || c.HTTP.HookRateWindow <= 0 {
		errs = append(errs, ErrInvalidHookRateRule)
	}
	if c.IsProduction() && c.HTTP.HookSecret == "" {
		errs = append(errs, ErrMissingHookSecret)
	}
	return errors.Join(errs...)
}

// applyEnv overrides fields from CATWATCH_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("CATWATCH_ENV", &c.Env)
	str("CATWATCH_LOG_LEVEL", &c.LogLevel)

	str("CATWATCH_WIKI_BASE_URL", &c.Wiki.BaseURL)
	str("CATWATCH_WIKI_ARTICLE_PATH", &c.Wiki.ArticlePath)
	str("CATWATCH_WIKI_SCRIPT_PATH", &c.Wiki.ScriptPath)
	str("CATWATCH_WIKI_SITE_NAME", &c.Wiki.SiteName)
	str("CATWATCH_WIKI_LANGUAGE", &c.Wiki.ContentLanguage)
	str("CATWATCH_WIKI_HELP_PAGE_URL", &c.Wiki.HelpPageURL)
	str("CATWATCH_WIKI_TIMEZONE", &c.Wiki.ServerTimezone)

	boolean("CATWATCH_NOTIFY_EDITOR", &c.Notifications.NotifyEditorOfOwnChange)
	boolean("CATWATCH_USE_AUTO_WATCH_CATEGORY", &c.Notifications.UseAutoWatchCategory)
	boolean("CATWATCH_AUTO_WATCH_USE_REAL_NAME", &c.Notifications.AutoWatchUseRealName)
	boolean("CATWATCH_REVEAL_EDITOR_ADDRESS", &c.Notifications.RevealEditorAddress)
	boolean("CATWATCH_FROM_IS_EDITOR", &c.Notifications.FromIsEditorWhenRevealed)
	boolean("CATWATCH_USE_REAL_NAME", &c.Notifications.UseRealNameInNotification)
	integer("CATWATCH_MAX_PARALLEL_CATEGORIES", &c.Notifications.MaxParallelCategories)

	str("CATWATCH_SENDER_ADDRESS", &c.Mail.SystemSenderAddress)
	str("CATWATCH_SENDER_NAME", &c.Mail.SystemSenderName)
	str("CATWATCH_NO_REPLY_ADDRESS", &c.Mail.NoReplyAddress)
	str("CATWATCH_RESEND_KEY", &c.Mail.ResendAPIKey)
	duration("CATWATCH_SEND_TIMEOUT", &c.Mail.SendTimeout)
	float("CATWATCH_SEND_RATE", &c.Mail.SendRatePerSecond)
	integer("CATWATCH_SEND_BURST", &c.Mail.SendBurst)

	str("CATWATCH_ADDR", &c.HTTP.Addr)
	str("CATWATCH_HOOK_SECRET", &c.HTTP.HookSecret)
	integer("CATWATCH_HOOK_RATE_LIMIT", &c.HTTP.HookRateLimit)
	duration("CATWATCH_HOOK_RATE_WINDOW", &c.HTTP.HookRateWindow)

	str("CATWATCH_DB_PATH", &c.Database.Path)
	boolean("CATWATCH_SEED_DEMO", &c.Database.SeedDemo)

	return errors.Join(errs...)
}
