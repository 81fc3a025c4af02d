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

// Config holds the document pipeline configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Records     RecordsConfig     `yaml:"records"`
	Blobs       BlobsConfig       `yaml:"blobs"`
	Queue       QueueConfig       `yaml:"queue"`
	SearchIndex SearchIndexConfig `yaml:"search_index"`
	Retry       RetryConfig       `yaml:"retry"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Worker      WorkerConfig      `yaml:"worker"`
	Search      SearchConfig      `yaml:"search"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds the Redis connection shared by the redis record store
// and the RediSearch index.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	Driver string       `yaml:"driver"` // redis, sqlite, mongo (default: redis)
	SQLite SQLiteConfig `yaml:"sqlite"`
	Mongo  MongoConfig  `yaml:"mongo"`
}

// SQLiteConfig holds the sqlite record store settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MongoConfig holds the mongo record store settings.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// BlobsConfig selects the blob store.
type BlobsConfig struct {
	Driver string `yaml:"driver"` // fs, badger (default: fs)
	Dir    string `yaml:"dir"`
}

// QueueConfig holds work queue and change notification settings.
type QueueConfig struct {
	Driver        string `yaml:"driver"` // nats, memory (default: nats)
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	AckWaitSec    int    `yaml:"ack_wait_sec"`
}

// SearchIndexConfig selects the search index backend.
type SearchIndexConfig struct {
	Driver     string `yaml:"driver"` // redis, bleve (default: redis)
	Name       string `yaml:"name"`
	BlevePath  string `yaml:"bleve_path"` // empty = in-memory
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetryConfig is the backoff policy shared by the index synchronizer and the query service.
type RetryConfig struct {
	Enabled     *bool   `yaml:"enabled"`
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMs int     `yaml:"base_delay_ms"`
	Multiplier  float64 `yaml:"multiplier"`
}

// ExtractionConfig holds the text extraction capability settings.
type ExtractionConfig struct {
	Driver            string  `yaml:"driver"` // openai, text (default: openai)
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// WorkerConfig holds extraction worker settings.
type WorkerConfig struct {
	Concurrency   int  `yaml:"concurrency"`
	MaxDeliveries int  `yaml:"max_deliveries"`
	SkipExtracted bool `yaml:"skip_extracted"`
}

// SearchConfig holds query service settings.
type SearchConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 32 << 20
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "docs:"
	}
	if c.Records.Driver == "" {
		c.Records.Driver = "redis"
	}
	if c.Records.SQLite.Path == "" {
		c.Records.SQLite.Path = "data/documents.db"
	}
	if c.Records.Mongo.Database == "" {
		c.Records.Mongo.Database = "docmanagement"
	}
	if c.Records.Mongo.Collection == "" {
		c.Records.Mongo.Collection = "documents"
	}
	if c.Blobs.Driver == "" {
		c.Blobs.Driver = "fs"
	}
	if c.Blobs.Dir == "" {
		c.Blobs.Dir = "uploads"
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "nats"
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "DOCUMENTS"
	}
	if c.Queue.SubjectPrefix == "" {
		c.Queue.SubjectPrefix = "docs"
	}
	if c.Queue.AckWaitSec <= 0 {
		c.Queue.AckWaitSec = 120
	}
	if c.SearchIndex.Driver == "" {
		c.SearchIndex.Driver = "redis"
	}
	if c.SearchIndex.Name == "" {
		c.SearchIndex.Name = "idx:docs"
	}
	if c.SearchIndex.TimeoutSec <= 0 {
		c.SearchIndex.TimeoutSec = 5
	}
	if c.Retry.Enabled == nil {
		enabled := true
		c.Retry.Enabled = &enabled
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = 1000
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Extraction.Driver == "" {
		c.Extraction.Driver = "openai"
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = "gpt-4o-mini"
	}
	if c.Extraction.MaxTokens <= 0 {
		c.Extraction.MaxTokens = 4096
	}
	if c.Extraction.Burst <= 0 {
		c.Extraction.Burst = 1
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.MaxDeliveries <= 0 {
		c.Worker.MaxDeliveries = 5
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 10
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.needsRedis() && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Records.Driver {
	case "redis", "sqlite":
	case "mongo":
		if c.Records.Mongo.URI == "" {
			return fmt.Errorf("records.mongo.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("records.driver must be one of redis, sqlite, mongo, got %q", c.Records.Driver)
	}
	switch c.Blobs.Driver {
	case "fs", "badger":
	default:
		return fmt.Errorf("blobs.driver must be \"fs\" or \"badger\", got %q", c.Blobs.Driver)
	}
	switch c.Queue.Driver {
	case "memory":
	case "nats":
		if c.Queue.URL == "" {
			return fmt.Errorf("queue.url is required for the nats driver")
		}
	default:
		return fmt.Errorf("queue.driver must be \"nats\" or \"memory\", got %q", c.Queue.Driver)
	}
	switch c.SearchIndex.Driver {
	case "redis", "bleve":
	default:
		return fmt.Errorf("search_index.driver must be \"redis\" or \"bleve\", got %q", c.SearchIndex.Driver)
	}
	switch c.Extraction.Driver {
	case "text":
	case "openai":
		if c.Extraction.APIKey == "" {
			return fmt.Errorf("extraction.api_key is required for the openai driver")
		}
	default:
		return fmt.Errorf("extraction.driver must be \"openai\" or \"text\", got %q", c.Extraction.Driver)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size (%d) exceeds search.max_page_size (%d)",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	return nil
}

// RetryEnabled reports whether index calls go through the retrying wrapper.
func (c *Config) RetryEnabled() bool {
	return c.Retry.Enabled == nil || *c.Retry.Enabled
}

// RetryBaseDelay returns the first backoff delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

func (c *Config) needsRedis() bool {
	return c.Records.Driver == "redis" || c.SearchIndex.Driver == "redis"
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests and `go run` from subdirectories.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
