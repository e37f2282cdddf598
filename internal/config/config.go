package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{"config.yaml", "config.yml", "/etc/om-relay/config.yaml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	Delivery  DeliveryConfig  `koanf:"delivery"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
	Limits    LimitsConfig    `koanf:"limits"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	AllowedOrigins  string        `koanf:"allowed_origins"`
	BodyLimit       int           `koanf:"body_limit"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver  string `koanf:"driver"`
	DSN     string `koanf:"dsn"`
	Host    string `koanf:"host"`
	User    string `koanf:"user"`
	Pass    string `koanf:"password"`
	Name    string `koanf:"name"`
	Port    string `koanf:"port"`
	SSLMode string `koanf:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	// JWTSecret verifies bearer tokens and websocket join claims.
	// Empty means join claims are trusted as-is (development only).
	JWTSecret string `koanf:"jwt_secret"`
	CSRFMode  string `koanf:"csrf_mode"`
}

type DeliveryConfig struct {
	SendBuffer      int           `koanf:"send_buffer"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	PongTimeout     time.Duration `koanf:"pong_timeout"`
	ReapInterval    time.Duration `koanf:"reap_interval"`
	SSEHeartbeat    time.Duration `koanf:"sse_heartbeat"`
	GzipThreshold   int           `koanf:"gzip_threshold"`
	RegistryShards  int           `koanf:"registry_shards"`
	JoinWaitTimeout time.Duration `koanf:"join_wait_timeout"`
}

type SchedulerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Interval        time.Duration `koanf:"interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	Jitter          float64       `koanf:"jitter"`
	BatchSize       int           `koanf:"batch_size"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type LimitsConfig struct {
	MaxMessageLength int `koanf:"max_message_length"`
	PageSize         int `koanf:"page_size"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BodyLimit:       1 * 1024 * 1024,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Enabled: true,
			Addr:    "localhost:6379",
		},
		Auth: AuthConfig{CSRFMode: "token"},
		Delivery: DeliveryConfig{
			SendBuffer:      64,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     90 * time.Second,
			ReapInterval:    30 * time.Second,
			SSEHeartbeat:    30 * time.Second,
			GzipThreshold:   512,
			RegistryShards:  32,
			JoinWaitTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			Interval:        10 * time.Second,
			MaxInterval:     2 * time.Minute,
			Jitter:          0.2,
			BatchSize:       200,
			BreakerFailures: 3,
			BreakerTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Limits:  LimitsConfig{MaxMessageLength: 4000, PageSize: 200},
	}
}

// envMappings keeps the flat variable names used by existing deployments.
var envMappings = map[string]string{
	"port":               "server.port",
	"allowed_origins":    "server.allowed_origins",
	"jwt_secret":         "auth.jwt_secret",
	"csrf_mode":          "auth.csrf_mode",
	"db_driver":          "database.driver",
	"database_url":       "database.dsn",
	"db_host":            "database.host",
	"db_user":            "database.user",
	"db_password":        "database.password",
	"db_name":            "database.name",
	"db_port":            "database.port",
	"db_sslmode":         "database.sslmode",
	"redis_enabled":      "redis.enabled",
	"redis_addr":         "redis.addr",
	"redis_password":     "redis.password",
	"redis_db":           "redis.db",
	"log_level":          "logging.level",
	"log_format":         "logging.format",
	"log_caller":         "logging.caller",
	"max_message_length": "limits.max_message_length",
	"scheduler_enabled":  "scheduler.enabled",
	"scheduler_interval": "scheduler.interval",
}

// Load reads defaults, then an optional YAML file, then the environment.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envTransform maps DB_HOST style names onto koanf paths. Variables that are
// not known are dropped so unrelated environment noise never reaches the config.
func envTransform(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if strings.HasPrefix(key, "relay_") {
		return strings.Replace(strings.TrimPrefix(key, "relay_"), "__", ".", -1)
	}
	return ""
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for sqlite")
	}
	switch c.Auth.CSRFMode {
	case "token", "origin", "off":
	default:
		return fmt.Errorf("auth.csrf_mode must be token, origin or off, got %q", c.Auth.CSRFMode)
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}
	if c.Scheduler.MaxInterval < c.Scheduler.Interval {
		c.Scheduler.MaxInterval = c.Scheduler.Interval
	}
	if c.Scheduler.Jitter < 0 || c.Scheduler.Jitter >= 1 {
		return fmt.Errorf("scheduler.jitter must be in [0,1), got %v", c.Scheduler.Jitter)
	}
	if c.Delivery.SendBuffer <= 0 {
		return errors.New("delivery.send_buffer must be positive")
	}
	if c.Delivery.PongTimeout <= c.Delivery.PingInterval {
		return errors.New("delivery.pong_timeout must exceed delivery.ping_interval")
	}
	if c.Limits.MaxMessageLength <= 0 {
		return errors.New("limits.max_message_length must be positive")
	}
	return nil
}

// PostgresDSN builds a libpq DSN from discrete fields unless DSN is set.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Pass, d.Name, d.Port, d.SSLMode,
	)
}
