// Package config reads service settings from the environment, with an
// optional .env file for local runs and database credentials from SSM.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"axiapac.com/presence/infrastructure/devops"
	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/security"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DSN              string `env:"DSN"`
	DBParameter      string `env:"DB_PARAMETER"`
	DBEnvironment    string `env:"DB_ENV" envDefault:"dev"`
	DBSchema         string `env:"DB_SCHEMA" envDefault:"presence"`
	DBMaxConnections int    `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBLogLevel       string `env:"DB_LOG_LEVEL" envDefault:"warn"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port      int    `env:"PORT" envDefault:"8090"`
	JWTSecret string `env:"JWT_SECRET"`
	Timezone  string `env:"TIMEZONE" envDefault:"Asia/Jakarta"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	BadgerPath     string        `env:"BADGER_PATH" envDefault:"./data/sessions"`
	BadgerInMemory bool          `env:"BADGER_IN_MEMORY" envDefault:"false"`

	DirectoryURL             string        `env:"DIRECTORY_URL"`
	DirectorySigningSecret   string        `env:"DIRECTORY_SIGNING_SECRET"`
	DirectoryTimeout         time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"2500ms"`
	DefaultOfficeLat         float64       `env:"DEFAULT_OFFICE_LAT"`
	DefaultOfficeLng         float64       `env:"DEFAULT_OFFICE_LNG"`
	DefaultMaxDistanceMeters float64       `env:"DEFAULT_MAX_DISTANCE_METERS" envDefault:"100"`

	ConfidenceThreshold float64       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.85"`
	CheckoutGrace       time.Duration `env:"CHECKOUT_GRACE" envDefault:"2h"`
	ProbeMaxJitter      time.Duration `env:"PROBE_MAX_JITTER" envDefault:"60m"`
	SweepLookbackDays   int           `env:"SWEEP_LOOKBACK_DAYS" envDefault:"3"`

	// cron specs, standard five fields
	MissingCheckInSchedule  string        `env:"MISSING_CHECK_IN_SCHEDULE" envDefault:"*/15 * * * *"`
	MissingCheckOutSchedule string        `env:"MISSING_CHECK_OUT_SCHEDULE" envDefault:"*/15 * * * *"`
	InsufficientGpsSchedule string        `env:"INSUFFICIENT_GPS_SCHEDULE" envDefault:"5 * * * *"`
	LateCheckInSchedule     string        `env:"LATE_CHECK_IN_SCHEDULE" envDefault:"*/10 * * * *"`
	SamplerSchedule         string        `env:"SAMPLER_SCHEDULE" envDefault:"0 * * * *"`
	DispatchInterval        time.Duration `env:"DISPATCH_INTERVAL" envDefault:"1m"`
	ReportSchedule          string        `env:"REPORT_SCHEDULE"`

	SlackBotToken     string   `env:"SLACK_BOT_TOKEN"`
	SlackInfoChannel  string   `env:"SLACK_INFO_CHANNEL"`
	SlackErrorChannel string   `env:"SLACK_ERROR_CHANNEL"`
	SESFrom           string   `env:"SES_FROM"`
	AbsenceRecipients []string `env:"ABSENCE_RECIPIENTS" envSeparator:","`
	ReportBucket      string   `env:"REPORT_BUCKET"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom parses an explicit environment, ignoring the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1], got %v", cfg.ConfidenceThreshold)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return &cfg, nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Secret() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return security.DecodeSecret(c.JWTSecret)
}

// DirectorySecret returns nil when requests to the directory go unsigned.
func (c *Config) DirectorySecret() ([]byte, error) {
	if c.DirectorySigningSecret == "" {
		return nil, nil
	}
	return security.DecodeSecret(c.DirectorySigningSecret)
}

func (c *Config) FallbackOffice() core.Office {
	return core.Office{Lat: c.DefaultOfficeLat, Lng: c.DefaultOfficeLng, MaxDistanceMeters: c.DefaultMaxDistanceMeters}
}

// ResolveDSN prefers an explicit DSN, then the DB_PARAMETER entry for
// DB_ENV. The SSM client is only created when needed.
func (c *Config) ResolveDSN(ctx context.Context, client func(context.Context) (devops.SSMAPI, error)) (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	if c.DBParameter == "" {
		return "", errors.New("either DSN or DB_PARAMETER is required")
	}

	ssmClient, err := client(ctx)
	if err != nil {
		return "", err
	}
	dbs, err := devops.LoadDatabases(ctx, ssmClient, c.DBParameter)
	if err != nil {
		return "", err
	}
	entry, ok := dbs[strings.ToLower(c.DBEnvironment)]
	if !ok {
		return "", fmt.Errorf("environment '%s' not found in parameter %s", c.DBEnvironment, c.DBParameter)
	}
	return entry.DSN(c.DBSchema), nil
}

// SSMClient adapts devops.ConnectSSM for ResolveDSN.
func SSMClient(ctx context.Context) (devops.SSMAPI, error) {
	return devops.ConnectSSM(ctx)
}

func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
