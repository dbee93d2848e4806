package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FetchModeBrowser = "browser"
	FetchModeStatic  = "static"

	defaultSQLitePath = "olx_cars.db"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	BaseURL              string
	DelayBetweenRequests time.Duration
	MaxPages             int
	MaxConcurrency       int
	MaxRetries           int
	RequestTimeout       time.Duration

	FetchMode string
	ChromeBin string
	UserAgent string

	RetentionDays int
	DropRateAlarm float64
	LogLevel      string
	CSVOutputPath string
}

// Load reads the .env file and resolves the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v, filling in defaults, and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	delay, err := parseDuration(v.GetString("DELAY_BETWEEN_REQUESTS"))
	if err != nil {
		return nil, fmt.Errorf("DELAY_BETWEEN_REQUESTS: %w", err)
	}
	timeout, err := parseDuration(v.GetString("REQUEST_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		DatabaseDriver: strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseURL:    v.GetString("DATABASE_URL"),

		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		BaseURL:              strings.TrimRight(v.GetString("BASE_URL"), "/"),
		DelayBetweenRequests: delay,
		MaxPages:             v.GetInt("MAX_PAGES"),
		MaxConcurrency:       v.GetInt("MAX_CONCURRENCY"),
		MaxRetries:           v.GetInt("MAX_RETRIES"),
		RequestTimeout:       timeout,

		FetchMode: strings.ToLower(strings.TrimSpace(v.GetString("FETCH_MODE"))),
		ChromeBin: v.GetString("CHROME_BIN"),
		UserAgent: v.GetString("USER_AGENT"),

		RetentionDays: v.GetInt("RETENTION_DAYS"),
		DropRateAlarm: v.GetFloat64("DROP_RATE_ALARM"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		CSVOutputPath: v.GetString("CSV_OUTPUT_PATH"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "scraper")
	v.SetDefault("POSTGRES_PASSWORD", "scraper123")
	v.SetDefault("POSTGRES_DB", "olx_cars")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("BASE_URL", "https://www.olx.pt/carros-motos-e-barcos/carros")
	v.SetDefault("DELAY_BETWEEN_REQUESTS", "2s")
	v.SetDefault("MAX_PAGES", 10)
	v.SetDefault("MAX_CONCURRENCY", 1)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	v.SetDefault("FETCH_MODE", FetchModeBrowser)
	v.SetDefault("CHROME_BIN", "")
	v.SetDefault("USER_AGENT", "")

	v.SetDefault("RETENTION_DAYS", 30)
	v.SetDefault("DROP_RATE_ALARM", 0.5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CSV_OUTPUT_PATH", "./output/car_listings.csv")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if c.DelayBetweenRequests < 0 {
		errs = append(errs, errors.New("DELAY_BETWEEN_REQUESTS must not be negative"))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be at least 1, got %d", c.MaxPages))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}

	switch c.FetchMode {
	case FetchModeBrowser, FetchModeStatic:
	default:
		errs = append(errs, fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchModeBrowser, FetchModeStatic, c.FetchMode))
	}

	if c.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays))
	}
	if c.DropRateAlarm < 0 || c.DropRateAlarm > 1 {
		errs = append(errs, fmt.Errorf("DROP_RATE_ALARM must be within [0, 1], got %g", c.DropRateAlarm))
	}

	return errors.Join(errs...)
}

// DSN returns the connection string for the configured driver. An explicit
// DATABASE_URL always wins.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DatabaseDriver == DriverPostgres {
		return "host=" + c.PostgresHost +
			" port=" + c.PostgresPort +
			" user=" + c.PostgresUser +
			" password=" + c.PostgresPassword +
			" dbname=" + c.PostgresDB +
			" sslmode=" + c.PostgresSSLMode
	}
	return defaultSQLitePath
}

// Retention is RetentionDays as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// parseDuration accepts Go durations ("1500ms") and bare seconds ("2", "0.5").
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}
