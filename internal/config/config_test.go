package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scheduler.Interval != 10*time.Second {
		t.Errorf("Scheduler.Interval = %v, want 10s", cfg.Scheduler.Interval)
	}
	if cfg.Delivery.GzipThreshold != 512 {
		t.Errorf("Delivery.GzipThreshold = %d, want 512", cfg.Delivery.GzipThreshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("SCHEDULER_INTERVAL", "3s")
	t.Setenv("RELAY_DELIVERY__SEND_BUFFER", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file::memory:" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Scheduler.Interval != 3*time.Second {
		t.Errorf("Scheduler.Interval = %v, want 3s", cfg.Scheduler.Interval)
	}
	if cfg.Delivery.SendBuffer != 8 {
		t.Errorf("Delivery.SendBuffer = %d, want 8", cfg.Delivery.SendBuffer)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "relay.yaml")
	content := "server:\n  port: 7070\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"sqlite without dsn", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"bad csrf", func(c *Config) { c.Auth.CSRFMode = "maybe" }, true},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, true},
		{"jitter too large", func(c *Config) { c.Scheduler.Jitter = 1 }, true},
		{"pong before ping", func(c *Config) { c.Delivery.PongTimeout = time.Second }, true},
		{"zero message length", func(c *Config) { c.Limits.MaxMessageLength = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Pass: "p", Name: "n", Port: "5432", SSLMode: "disable"}
	want := "host=db user=u password=p dbname=n port=5432 sslmode=disable"
	if got := d.PostgresDSN(); got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}

	d.DSN = "postgres://x"
	if got := d.PostgresDSN(); got != "postgres://x" {
		t.Errorf("PostgresDSN() with DSN = %q", got)
	}
}
