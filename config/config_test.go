package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("DatabaseDriver = %q; want sqlite", cfg.DatabaseDriver)
	}
	if cfg.DSN() != "olx_cars.db" {
		t.Errorf("DSN() = %q; want olx_cars.db", cfg.DSN())
	}
	if cfg.DelayBetweenRequests != 2*time.Second {
		t.Errorf("DelayBetweenRequests = %v; want 2s", cfg.DelayBetweenRequests)
	}
	if cfg.MaxPages != 10 || cfg.MaxConcurrency != 1 || cfg.MaxRetries != 3 {
		t.Errorf("got pages=%d concurrency=%d retries=%d; want 10, 1, 3", cfg.MaxPages, cfg.MaxConcurrency, cfg.MaxRetries)
	}
	if cfg.BaseURL != "https://www.olx.pt/carros-motos-e-barcos/carros" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Retention() != 30*24*time.Hour {
		t.Errorf("Retention() = %v; want 720h", cfg.Retention())
	}
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_DRIVER", "Postgres")
	v.Set("DELAY_BETWEEN_REQUESTS", "0.5")
	v.Set("REQUEST_TIMEOUT", "1m")
	v.Set("BASE_URL", "https://www.olx.pt/carros/")
	v.Set("FETCH_MODE", "static")

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("DatabaseDriver = %q; want postgres", cfg.DatabaseDriver)
	}
	if !strings.Contains(cfg.DSN(), "dbname=olx_cars") {
		t.Errorf("DSN() = %q; want composed postgres DSN", cfg.DSN())
	}
	if cfg.DelayBetweenRequests != 500*time.Millisecond {
		t.Errorf("DelayBetweenRequests = %v; want 500ms", cfg.DelayBetweenRequests)
	}
	if cfg.RequestTimeout != time.Minute {
		t.Errorf("RequestTimeout = %v; want 1m", cfg.RequestTimeout)
	}
	if cfg.BaseURL != "https://www.olx.pt/carros" {
		t.Errorf("BaseURL = %q; want trailing slash trimmed", cfg.BaseURL)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"DATABASE_DRIVER", "mysql"},
		{"MAX_PAGES", 0},
		{"MAX_CONCURRENCY", -1},
		{"MAX_RETRIES", 0},
		{"FETCH_MODE", "curl"},
		{"BASE_URL", "olx.pt"},
		{"DROP_RATE_ALARM", 1.5},
		{"RETENTION_DAYS", 0},
		{"DELAY_BETWEEN_REQUESTS", "-1s"},
	}

	for _, tt := range tests {
		v := viper.New()
		v.Set(tt.key, tt.value)
		if _, err := FromViper(v); err == nil {
			t.Errorf("%s=%v: expected validation error", tt.key, tt.value)
		} else if !strings.Contains(err.Error(), tt.key) {
			t.Errorf("%s=%v: error %q does not name the key", tt.key, tt.value, err)
		}
	}
}

func TestExplicitDatabaseURLWins(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_DRIVER", "postgres")
	v.Set("DATABASE_URL", "postgres://u:p@db/cars?sslmode=disable")

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.DSN() != "postgres://u:p@db/cars?sslmode=disable" {
		t.Errorf("DSN() = %q", cfg.DSN())
	}
}
