package config

import (
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
)

// Store and cache backend names.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	CacheInMemory  = "in_memory"
	CacheMemcached = "memcached"
	CacheRedis     = "redis"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	// DebugErrors adds the underlying error to 500 responses as "detail".
	DebugErrors bool

	ServerPort string
	BasePath   string

	RequestTimeout time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	StoreBackend     string // "postgres" or "memory"
	DatabaseURL      string
	DatabaseMaxConns int32
	DatabaseMigrate  bool

	IdentityURL     string
	IdentityAPIKey  string
	IdentityTimeout time.Duration

	// AuthCacheTTL is how long a verified principal is cached. Zero disables caching.
	AuthCacheTTL time.Duration

	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration

	CacheBackend          string // "in_memory", "memcached" or "redis"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisTimeout          time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	DegradedWindow   time.Duration
	DegradedErrorPct int

	MaxPageSize   int
	MaxExportRows int
}

type fileConfig struct {
	DebugErrors *bool `yaml:"debug_errors"`

	Server struct {
		Port     string `yaml:"port"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"inflight_timeout"`
		InFlightCheckInterval string `yaml:"inflight_check_interval"`
	} `yaml:"shutdown"`

	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
		Migrate  *bool  `yaml:"migrate"`
	} `yaml:"database"`

	Identity struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"identity"`

	Auth struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"auth"`

	Breaker struct {
		FailureThreshold *int   `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"breaker"`

	Cache struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr    string `yaml:"addr"`
			DB      int    `yaml:"db"`
			Timeout string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	API struct {
		MaxPageSize   int `yaml:"max_page_size"`
		MaxExportRows int `yaml:"max_export_rows"`
	} `yaml:"api"`
}

type secretsFile struct {
	DatabaseURL    string `yaml:"database_url"`
	IdentityAPIKey string `yaml:"identity_api_key"`
	RedisPassword  string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is loaded first; variables already set in the
// process environment win. Secrets come from env or the secrets file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if fc.DebugErrors != nil {
		cfg.DebugErrors = *fc.DebugErrors
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.BasePath = normalizeBasePath(fc.Server.BasePath)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.StoreBackend = firstNonEmpty(lowerEnv("STORE_BACKEND"), strings.ToLower(fc.Store.Backend), StorePostgres)
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), sec.DatabaseURL, fc.Database.URL)
	cfg.DatabaseMaxConns = fc.Database.MaxConns
	if cfg.DatabaseMaxConns <= 0 {
		cfg.DatabaseMaxConns = 10
	}
	cfg.DatabaseMigrate = true
	if fc.Database.Migrate != nil {
		cfg.DatabaseMigrate = *fc.Database.Migrate
	}

	cfg.IdentityURL = firstNonEmpty(os.Getenv("IDENTITY_URL"), fc.Identity.URL)
	cfg.IdentityAPIKey = firstNonEmpty(os.Getenv("IDENTITY_API_KEY"), sec.IdentityAPIKey)
	cfg.IdentityTimeout = parseDuration(fc.Identity.Timeout, 3*time.Second)

	cfg.AuthCacheTTL = parseDurationOrZero(fc.Auth.CacheTTL, 5*time.Minute)
	if cfg.AuthCacheTTL < 0 {
		cfg.AuthCacheTTL = 0
	}

	cfg.BreakerFailureThreshold = 5
	if fc.Breaker.FailureThreshold != nil && *fc.Breaker.FailureThreshold >= 0 {
		cfg.BreakerFailureThreshold = uint32(*fc.Breaker.FailureThreshold)
	}
	cfg.BreakerTimeout = parseDuration(fc.Breaker.Timeout, 30*time.Second)

	cfg.CacheBackend = firstNonEmpty(lowerEnv("CACHE_BACKEND"), strings.TrimSpace(strings.ToLower(fc.Cache.Backend)), CacheInMemory)
	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Cache.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_ADDR")), strings.TrimSpace(fc.Cache.Redis.Addr), "localhost:6379")
	cfg.RedisPassword = firstNonEmpty(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Cache.Redis.Timeout, 500*time.Millisecond)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.MaxPageSize = fc.API.MaxPageSize
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	cfg.MaxExportRows = fc.API.MaxExportRows

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// normalizeBasePath returns "" or a path with one leading and no trailing slash.
func normalizeBasePath(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return "/" + s
}

func lowerEnv(key string) string {
	return strings.TrimSpace(strings.ToLower(os.Getenv(key)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL required for store.backend postgres (set env or config/secrets.yaml database_url)")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.backend must be postgres or memory, got %q", cfg.StoreBackend)
	}

	switch cfg.CacheBackend {
	case CacheInMemory, CacheMemcached, CacheRedis:
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}

	if cfg.IdentityURL == "" {
		return fmt.Errorf("IDENTITY_URL required (set env or identity.url)")
	}
	if cfg.IdentityAPIKey == "" {
		return fmt.Errorf("IDENTITY_API_KEY required (set env or config/secrets.yaml identity_api_key)")
	}
	if cfg.RequestTimeout <= cfg.IdentityTimeout {
		cfg.RequestTimeout = cfg.IdentityTimeout + time.Second
	}
	return nil
}

// String renders the non-secret settings for startup logging.
func (c *Config) String() string {
	return "store=" + c.StoreBackend +
		" cache=" + c.CacheBackend +
		" port=" + c.ServerPort +
		" base_path=" + strconv.Quote(c.BasePath) +
		" max_page_size=" + strconv.Itoa(c.MaxPageSize)
}
