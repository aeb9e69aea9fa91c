package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Push            PushConfig            `yaml:"push"`
	WorkerPool      WorkerPoolConfig      `yaml:"worker_pool"`
	Dispatch        DispatchConfig        `yaml:"dispatch"`
	Retention       RetentionConfig       `yaml:"retention"`
	DeviceDirectory DeviceDirectoryConfig `yaml:"device_directory"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
	EnablePartialIndexes   bool   `yaml:"enable_partial_indexes"`
}

// DispatchConfig tunes volunteer selection for new emergencies.
type DispatchConfig struct {
	FreshnessMinutes int           `yaml:"freshness_minutes"`
	Freshness        time.Duration `yaml:"-"`
	MaxRecipients    int           `yaml:"max_recipients"`
	CandidateLimit   int           `yaml:"candidate_limit"`
}

// RetentionConfig controls the emergency cleanup endpoint and the optional background sweep.
type RetentionConfig struct {
	DefaultDays     int           `yaml:"default_days"`
	AdminSecret     string        `yaml:"admin_secret"`
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// DeviceDirectoryConfig selects where device records live.
type DeviceDirectoryConfig struct {
	Backend  string `yaml:"backend"` // gorm or redis
	RedisURL string `yaml:"redis_url"`
}

// Load reads the configuration from the given path.
// Values from the environment (and an optional .env file) override the file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env file: %v", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CLEANUP_SECRET"); v != "" {
		cfg.Retention.AdminSecret = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.DeviceDirectory.RedisURL = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	if cfg.Dispatch.FreshnessMinutes <= 0 {
		cfg.Dispatch.FreshnessMinutes = 10
	}
	cfg.Dispatch.Freshness = time.Duration(cfg.Dispatch.FreshnessMinutes) * time.Minute
	if cfg.Dispatch.MaxRecipients <= 0 {
		cfg.Dispatch.MaxRecipients = 10
	}
	if cfg.Dispatch.CandidateLimit <= 0 {
		cfg.Dispatch.CandidateLimit = 200
	}

	if cfg.Retention.DefaultDays <= 0 {
		cfg.Retention.DefaultDays = 30
	}
	if cfg.Retention.IntervalSeconds <= 0 {
		cfg.Retention.IntervalSeconds = 86400
	}
	cfg.Retention.Interval = time.Duration(cfg.Retention.IntervalSeconds) * time.Second
	if cfg.Retention.AdminSecret == "" {
		log.Printf("retention.admin_secret is not set; cleanup requests will be rejected")
	}

	if cfg.DeviceDirectory.Backend == "" {
		cfg.DeviceDirectory.Backend = "gorm"
	}
}
