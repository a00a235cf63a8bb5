package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the scopedex configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig maps bearer tokens to subject (user) ids.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens"`
	// DefaultSubject is used for every request when Tokens is empty.
	DefaultSubject string `yaml:"default_subject"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds the search index and scope cache connection.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	WriteTimeoutMs   int      `yaml:"write_timeout_ms"`
}

// PostgresConfig holds the system-of-record connection.
type PostgresConfig struct {
	URL              string `yaml:"url"`
	MaxConns         int32  `yaml:"max_conns"`
	SlowQueryMs      int    `yaml:"slow_query_ms"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// SyncConfig tunes the index/store synchronization.
type SyncConfig struct {
	IndexTimeoutMs       int  `yaml:"index_timeout_ms"`
	ScopeTTLSec          int  `yaml:"scope_ttl_sec"`
	ReindexBatchSize     int  `yaml:"reindex_batch_size"`
	ReindexParallelism   int  `yaml:"reindex_parallelism"`
	EnforceRetrieveScope bool `yaml:"enforce_retrieve_scope"`
	EnsureIndexes        bool `yaml:"ensure_indexes"`
}

// IndexTimeout returns the per-call search index deadline.
func (s SyncConfig) IndexTimeout() time.Duration {
	return time.Duration(s.IndexTimeoutMs) * time.Millisecond
}

// ScopeTTL returns the access scope cache lifetime.
func (s SyncConfig) ScopeTTL() time.Duration {
	return time.Duration(s.ScopeTTLSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Postgres.ReadinessTimeout <= 0 {
		c.Postgres.ReadinessTimeout = 10
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Sync.IndexTimeoutMs <= 0 {
		c.Sync.IndexTimeoutMs = 2000
	}
	if c.Sync.ScopeTTLSec <= 0 {
		c.Sync.ScopeTTLSec = 3600
	}
	if c.Sync.ReindexBatchSize <= 0 {
		c.Sync.ReindexBatchSize = 500
	}
	if c.Sync.ReindexParallelism <= 0 {
		c.Sync.ReindexParallelism = 2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	for token, subject := range c.Auth.Tokens {
		if token == "" || subject == "" {
			return fmt.Errorf("auth.tokens entries need a non-empty token and subject")
		}
	}
	if c.Sync.ReindexBatchSize > 10000 {
		return fmt.Errorf("sync.reindex_batch_size must be at most 10000, got %d", c.Sync.ReindexBatchSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
