// Package config loads and validates phrasewatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Notification backends.
const (
	BackendTelepush = "telepush"
	BackendPubSub   = "pubsub"
	BackendLog      = "log"
)

// Fetch modes.
const (
	ModeHTTP     = "http"
	ModeHeadless = "headless"
	ModeAuto     = "auto"
)

// EnvPrefix namespaces the environment variables Viper reads.
const EnvPrefix = "PHRASEWATCH"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Target    TargetConfig    `mapstructure:"target"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// TargetConfig names the page and the phrase to look for.
type TargetConfig struct {
	URL            string `mapstructure:"url"`
	Phrase         string `mapstructure:"phrase"`
	MinOccurrences int    `mapstructure:"min_occurrences"`
}

// ScheduleConfig sets how often the page is checked.
type ScheduleConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// NotifyConfig selects and configures the notification backend.
type NotifyConfig struct {
	Backend        string       `mapstructure:"backend"`
	RecipientToken string       `mapstructure:"recipient_token"`
	BaseURL        string       `mapstructure:"base_url"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds"`
	PubSub         PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds the topic used by the pubsub backend.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds       int  `mapstructure:"timeout_seconds"`
	MaxRetries           int  `mapstructure:"max_retries"`
	BackoffFactorSeconds int  `mapstructure:"backoff_factor_seconds"`
	BackoffMaxSeconds    int  `mapstructure:"backoff_max_seconds"`
	RespectRobots        bool `mapstructure:"respect_robots"`
}

// FetchConfig picks the fetch strategy and the pre-request delay window.
type FetchConfig struct {
	Mode       string `mapstructure:"mode"`
	DelayMinMs int    `mapstructure:"delay_min_ms"`
	DelayMaxMs int    `mapstructure:"delay_max_ms"`
}

// HeadlessConfig configures chromedp rendering.
type HeadlessConfig struct {
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	ExecPath      string `mapstructure:"exec_path"`
	// PromotionMinText is the visible-text length under which auto mode
	// re-renders a script-driven page.
	PromotionMinText int `mapstructure:"promotion_min_text"`
}

// SchedulerConfig tunes error recovery and shutdown.
type SchedulerConfig struct {
	ErrorBackoffSeconds int  `mapstructure:"error_backoff_seconds"`
	ExitOnFound         bool `mapstructure:"exit_on_found"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// legacyEnv maps keys to the bare variable names older deployments use.
var legacyEnv = map[string]string{
	"target.url":                "URL",
	"target.phrase":             "SEARCH_PHRASE",
	"target.min_occurrences":    "MIN_OCCURRENCES",
	"schedule.interval_minutes": "CHECK_INTERVAL",
	"notify.recipient_token":    "RECIPIENT_TOKEN",
}

// LoadDotEnv loads variables from the given files (default ".env") into the
// process environment. Missing files are ignored and existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "")
	v.SetDefault("target.phrase", "")
	v.SetDefault("target.min_occurrences", 1)
	v.SetDefault("schedule.interval_minutes", 60)
	v.SetDefault("notify.backend", BackendTelepush)
	v.SetDefault("notify.recipient_token", "")
	v.SetDefault("notify.base_url", "https://telepush.dev/api/messages")
	v.SetDefault("notify.timeout_seconds", 10)
	v.SetDefault("notify.pubsub.project_id", "")
	v.SetDefault("notify.pubsub.topic", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_factor_seconds", 1)
	v.SetDefault("http.backoff_max_seconds", 120)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("fetch.mode", ModeHTTP)
	v.SetDefault("fetch.delay_min_ms", 1000)
	v.SetDefault("fetch.delay_max_ms", 3000)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.promotion_min_text", 200)
	v.SetDefault("scheduler.error_backoff_seconds", 60)
	v.SetDefault("scheduler.exit_on_found", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "phrasewatch")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Target.URL) == "" {
		return fmt.Errorf("target.url must be set")
	}
	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target.url must be an absolute http(s) URL, got %q", c.Target.URL)
	}
	if c.Target.Phrase == "" {
		return fmt.Errorf("target.phrase must be set")
	}
	if c.Target.MinOccurrences < 1 {
		return fmt.Errorf("target.min_occurrences must be >= 1")
	}
	if c.Schedule.IntervalMinutes < 1 {
		return fmt.Errorf("schedule.interval_minutes must be >= 1")
	}
	switch c.Notify.Backend {
	case BackendTelepush:
		if c.Notify.RecipientToken == "" {
			return fmt.Errorf("notify.recipient_token must be set for the telepush backend")
		}
	case BackendPubSub:
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.Topic == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic must be set for the pubsub backend")
		}
	case BackendLog:
	default:
		return fmt.Errorf("notify.backend %q is not one of telepush, pubsub, log", c.Notify.Backend)
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify.timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffFactorSeconds < 0 || c.HTTP.BackoffMaxSeconds < 0 {
		return fmt.Errorf("http backoff settings must be >= 0")
	}
	switch c.Fetch.Mode {
	case ModeHTTP, ModeHeadless, ModeAuto:
	default:
		return fmt.Errorf("fetch.mode %q is not one of http, headless, auto", c.Fetch.Mode)
	}
	if c.Fetch.DelayMinMs < 0 || c.Fetch.DelayMinMs > c.Fetch.DelayMaxMs {
		return fmt.Errorf("fetch.delay_min_ms must be between 0 and fetch.delay_max_ms")
	}
	if c.Scheduler.ErrorBackoffSeconds < 0 {
		return fmt.Errorf("scheduler.error_backoff_seconds must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// Interval is the time between scheduled checks.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}

// HTTPTimeout is the per-request fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NotifyTimeout bounds a single notification delivery.
func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// BackoffFactor is the base of the exponential retry delay.
func (c Config) BackoffFactor() time.Duration {
	return time.Duration(c.HTTP.BackoffFactorSeconds) * time.Second
}

// BackoffMax caps a single retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxSeconds) * time.Second
}

// FetchDelay returns the pre-request delay window.
func (c Config) FetchDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Fetch.DelayMinMs) * time.Millisecond,
		time.Duration(c.Fetch.DelayMaxMs) * time.Millisecond
}

// NavTimeout bounds headless navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// ErrorBackoff is the pause after a recovered scheduler failure.
func (c Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Scheduler.ErrorBackoffSeconds) * time.Second
}
