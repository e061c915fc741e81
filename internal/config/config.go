// Package config assembles runtime settings from defaults, an optional YAML
// file and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

const (
	SourceModeLive    = "live"
	SourceModeFixture = "fixture"

	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type SourceConfig struct {
	Mode        string        `yaml:"mode"`
	FixtureFile string        `yaml:"fixture_file"`
	BaseURL     string        `yaml:"base_url"`
	APIToken    string        `yaml:"api_token"`
	PageSize    int           `yaml:"page_size"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type SyncConfig struct {
	// HighValueThreshold is a decimal USD amount, e.g. "10000" or "2500.50".
	HighValueThreshold string        `yaml:"high_value_threshold"`
	ConcurrentPhases   bool          `yaml:"concurrent_phases"`
	Interval           time.Duration `yaml:"interval"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	URL         string `yaml:"url"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslmode"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
	// TrustProxy honors X-Forwarded-For / X-Real-IP. Enable only behind a
	// proxy that overwrites them.
	TrustProxy bool `yaml:"trust_proxy"`
}

type AMQPConfig struct {
	URL string `yaml:"url"`
}

type MailConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
	From    string `yaml:"from"`
	AlertTo string `yaml:"alert_to"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		Source: SourceConfig{
			Mode:        SourceModeLive,
			BaseURL:     "https://api.hubapi.com",
			PageSize:    100,
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  500 * time.Millisecond,
		},
		Sync: SyncConfig{
			HighValueThreshold: "10000",
		},
		Database: DatabaseConfig{
			Driver:      DriverPgx,
			Host:        "localhost",
			Port:        5432,
			Username:    "postgres",
			Database:    "crm_dwh",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		HTTP: HTTPConfig{Port: 8080},
		Mail: MailConfig{
			Port: 587,
			From: "etl@localhost",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present), then CONFIG_FILE, then the process
// environment, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load without the .env step, reading variables through lookup.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return eris.Wrapf(err, "config: parse %s", path)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("SOURCE_MODE", &c.Source.Mode)
	e.str("FIXTURE_FILE", &c.Source.FixtureFile)
	e.str("HUBSPOT_BASE_URL", &c.Source.BaseURL)
	e.str("HUBSPOT_API_TOKEN", &c.Source.APIToken)
	e.integer("HUBSPOT_PAGE_SIZE", &c.Source.PageSize)
	e.duration("HUBSPOT_TIMEOUT", &c.Source.Timeout)
	e.integer("HUBSPOT_MAX_ATTEMPTS", &c.Source.MaxAttempts)
	e.duration("HUBSPOT_RETRY_DELAY", &c.Source.RetryDelay)

	e.str("HIGH_VALUE_THRESHOLD", &c.Sync.HighValueThreshold)
	e.boolean("SYNC_CONCURRENT_PHASES", &c.Sync.ConcurrentPhases)
	e.duration("SYNC_INTERVAL", &c.Sync.Interval)

	e.str("DB_DRIVER", &c.Database.Driver)
	e.str("DATABASE_URL", &c.Database.URL)
	e.str("DB_HOST", &c.Database.Host)
	e.integer("DB_PORT", &c.Database.Port)
	e.str("DB_USERNAME", &c.Database.Username)
	e.str("DB_PASSWORD", &c.Database.Password)
	e.str("DB_DATABASE", &c.Database.Database)
	e.str("DB_SSLMODE", &c.Database.SSLMode)
	e.boolean("DB_AUTO_MIGRATE", &c.Database.AutoMigrate)

	e.integer("HTTP_PORT", &c.HTTP.Port)
	e.boolean("HTTP_TRUST_PROXY", &c.HTTP.TrustProxy)
	e.str("AMQP_URL", &c.AMQP.URL)

	e.str("MAIL_HOST", &c.Mail.Host)
	e.integer("MAIL_PORT", &c.Mail.Port)
	e.str("MAIL_USER", &c.Mail.User)
	e.str("MAIL_PASS", &c.Mail.Pass)
	e.str("MAIL_FROM", &c.Mail.From)
	e.str("ALERT_EMAIL_TO", &c.Mail.AlertTo)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	return e.err()
}

// Validate rejects settings no run could succeed with.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Source.Mode {
	case SourceModeLive, SourceModeFixture:
	default:
		fail("SOURCE_MODE must be %q or %q, got %q", SourceModeLive, SourceModeFixture, c.Source.Mode)
	}
	if c.Source.PageSize < 1 || c.Source.PageSize > 100 {
		fail("HUBSPOT_PAGE_SIZE must be between 1 and 100, got %d", c.Source.PageSize)
	}
	if c.Source.Timeout <= 0 {
		fail("HUBSPOT_TIMEOUT must be positive")
	}
	if c.Source.MaxAttempts < 1 {
		fail("HUBSPOT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Source.RetryDelay < 0 {
		fail("HUBSPOT_RETRY_DELAY must not be negative")
	}
	if c.Source.Mode == SourceModeLive {
		if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			fail("HUBSPOT_BASE_URL must be an absolute URL, got %q", c.Source.BaseURL)
		}
	}

	if threshold, ok := entity.ParseCents(c.Sync.HighValueThreshold); !ok || threshold < 0 {
		fail("HIGH_VALUE_THRESHOLD must be a non-negative amount, got %q", c.Sync.HighValueThreshold)
	}
	if c.Sync.Interval < 0 {
		fail("SYNC_INTERVAL must not be negative")
	}

	switch c.Database.Driver {
	case DriverPgx, DriverPostgres, DriverMemory:
	default:
		fail("DB_DRIVER must be one of pgx, postgres, memory; got %q", c.Database.Driver)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		fail("HTTP_PORT out of range: %d", c.HTTP.Port)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		fail("LOG_LEVEL %q is not a log level", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		fail("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: invalid")
	}
	return nil
}

// Warnings lists settings that are valid but probably not what the operator
// wants. They are logged at startup.
func (c Config) Warnings() []string {
	var out []string
	if c.Source.Mode == SourceModeLive && strings.TrimSpace(c.Source.APIToken) == "" {
		out = append(out, "HUBSPOT_API_TOKEN is empty; live extraction will fail with an auth error")
	}
	if c.Database.Driver == DriverMemory {
		out = append(out, "DB_DRIVER=memory; loaded records are lost on exit")
	}
	if (c.Mail.Host == "") != (c.Mail.AlertTo == "") {
		out = append(out, "MAIL_HOST and ALERT_EMAIL_TO must both be set to enable failure alerts")
	}
	return out
}

// HighValueThreshold returns the parsed threshold. Call after Validate.
func (c Config) HighValueThreshold() entity.Cents {
	threshold, _ := entity.ParseCents(c.Sync.HighValueThreshold)
	return threshold
}

// DSN returns DATABASE_URL when set, else a URL built from the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.Username, d.Password)
	} else if d.Username != "" {
		u.User = url.User(d.Username)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.AlertTo != ""
}

func (c Config) FixtureMode() bool {
	return c.Source.Mode == SourceModeFixture
}
