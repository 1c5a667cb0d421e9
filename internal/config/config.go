package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"civic-reporting-api/internal/logger"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
	Logging    logger.Config    `json:"logging" yaml:"logging"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Worker     WorkerConfig     `json:"worker" yaml:"worker"`
	Features   FeaturesConfig   `json:"features" yaml:"features"`
}

type ServerConfig struct {
	Port      string `json:"port" yaml:"port"`
	Host      string `json:"host" yaml:"host"`
	EnableTLS bool   `json:"enable_tls" yaml:"enable_tls"`
	CertFile  string `json:"cert_file" yaml:"cert_file"`
	KeyFile   string `json:"key_file" yaml:"key_file"`
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins  string `json:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout int    `json:"shutdown_timeout" yaml:"shutdown_timeout"` // in seconds
}

type StorageConfig struct {
	Backend       string `json:"backend" yaml:"backend"` // file, memory, sqlite, postgres, mongo
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	DSN           string `json:"dsn" yaml:"dsn"`
	MongoURI      string `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `json:"mongo_database" yaml:"mongo_database"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours" yaml:"token_ttl_hours"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// ClassifierConfig points at the workflow-automation webhooks.
type ClassifierConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	APIKeyHeader   string `json:"api_key_header" yaml:"api_key_header"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	ClassifyPath   string `json:"classify_path" yaml:"classify_path"`
	AllocatePath   string `json:"allocate_path" yaml:"allocate_path"`
	SelectBidPath  string `json:"select_bid_path" yaml:"select_bid_path"`
	HeatmapPath    string `json:"heatmap_path" yaml:"heatmap_path"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
	// Problem reports allowed per user per day; 0 disables the check.
	ReportsPerDay int `json:"reports_per_day" yaml:"reports_per_day"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`
}

type WorkerConfig struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	Interval  int  `json:"interval" yaml:"interval"` // in seconds
	BatchSize int  `json:"batch_size" yaml:"batch_size"`
}

type FeaturesConfig struct {
	CacheEnabled  bool `json:"cache_enabled" yaml:"cache_enabled"`
	EventsEnabled bool `json:"events_enabled" yaml:"events_enabled"`
}

// Default returns the built-in configuration before any file or environment is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			MaxRequestBodySize: 10 << 20,
			AllowedOrigins:     "*",
			ShutdownTimeout:    15,
		},
		Storage: StorageConfig{
			Backend:       "file",
			DataDir:       "./data",
			MongoDatabase: "civic",
		},
		Auth: AuthConfig{
			TokenTTLHours: 7 * 24,
		},
		Classifier: ClassifierConfig{
			APIKeyHeader:   "X-N8N-API-KEY",
			TimeoutSeconds: 30,
			ClassifyPath:   "/webhook/classify-problem",
			AllocatePath:   "/webhook/allocate-tokens",
			SelectBidPath:  "/webhook/select-bid",
			HeatmapPath:    "/webhook/compute-heatmap",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Rate:          100,
			Window:        60,
			ReportsPerDay: 10,
		},
		Logging: logger.DefaultConfig(),
		Tracing: TracingConfig{
			ServiceName: "civic-reporting-api",
			Environment: "development",
		},
		Worker: WorkerConfig{
			Interval:  60,
			BatchSize: 10,
		},
		Features: FeaturesConfig{
			CacheEnabled:  true,
			EventsEnabled: true,
		},
	}
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values. A .env file in
// the working directory is read first and never overrides variables that are
// already set.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	overrideFromEnv(cfg)

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON or YAML file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setBool(&cfg.Server.EnableTLS, "SERVER_ENABLE_TLS")
	setString(&cfg.Server.CertFile, "SERVER_CERT_FILE")
	setString(&cfg.Server.KeyFile, "SERVER_KEY_FILE")
	setInt64(&cfg.Server.MaxRequestBodySize, "MAX_REQUEST_BODY_SIZE")
	setString(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")
	setInt(&cfg.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.DataDir, "DATA_DIR")
	setString(&cfg.Storage.DSN, "DATABASE_DSN")
	setString(&cfg.Storage.MongoURI, "MONGO_URI")
	setString(&cfg.Storage.MongoDatabase, "MONGO_DATABASE")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setInt(&cfg.Auth.TokenTTLHours, "JWT_TTL_HOURS")

	setString(&cfg.Classifier.BaseURL, "N8N_BASE_URL")
	setString(&cfg.Classifier.APIKey, "N8N_API_KEY")
	setString(&cfg.Classifier.APIKeyHeader, "N8N_API_KEY_HEADER")
	setInt(&cfg.Classifier.TimeoutSeconds, "N8N_TIMEOUT_SECONDS")
	setString(&cfg.Classifier.ClassifyPath, "N8N_CLASSIFY_WEBHOOK")
	setString(&cfg.Classifier.AllocatePath, "N8N_ALLOCATE_WEBHOOK")
	setString(&cfg.Classifier.SelectBidPath, "N8N_SELECT_BID_WEBHOOK")
	setString(&cfg.Classifier.HeatmapPath, "N8N_HEATMAP_WEBHOOK")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.ReportsPerDay, "REPORT_LIMIT_PER_DAY")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.File, "LOG_FILE")

	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setString(&cfg.Tracing.Environment, "ENVIRONMENT")

	setBool(&cfg.Worker.Enabled, "WORKER_ENABLED")
	setInt(&cfg.Worker.Interval, "WORKER_INTERVAL")
	setInt(&cfg.Worker.BatchSize, "WORKER_BATCH_SIZE")

	setBool(&cfg.Features.CacheEnabled, "CACHE_ENABLED")
	setBool(&cfg.Features.EventsEnabled, "EVENTS_ENABLED")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = i
		}
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("TLS requires both cert_file and key_file")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("data directory is required for the file backend")
		}
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("database DSN is required for the %s backend", c.Storage.Backend)
		}
	case "mongo":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("mongo URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return fmt.Errorf("classifier timeout must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.RateLimit.ReportsPerDay < 0 {
		return fmt.Errorf("reports per day must not be negative")
	}
	if c.Worker.Enabled && (c.Worker.Interval <= 0 || c.Worker.BatchSize <= 0) {
		return fmt.Errorf("worker interval and batch size must be positive")
	}
	return nil
}
