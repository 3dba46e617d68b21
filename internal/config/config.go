package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Encoder providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the vecmatch service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Index      IndexConfig      `yaml:"index"`
	Matching   MatchingConfig   `yaml:"matching"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector index backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, valkey, redis, postgres (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`        // postgres only
	KeyPrefix        string   `yaml:"key_prefix"` // valkey/redis keys, postgres table prefix
	MaxOpenConns     int      `yaml:"max_open_conns"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IsKV reports whether the driver is a Valkey-compatible key-value store.
func (d DatabaseConfig) IsKV() bool {
	return d.Driver == DriverValkey || d.Driver == DriverRedis
}

// IndexConfig holds vector index shape and HNSW settings.
type IndexConfig struct {
	Dimensions      int    `yaml:"dimensions"`
	Metric          string `yaml:"metric"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// MatchingConfig holds the ranking policy.
type MatchingConfig struct {
	Weights         WeightsConfig `yaml:"weights"`
	SkillMatchFloor float64       `yaml:"skill_match_floor"`
	DefaultTopK     int           `yaml:"default_top_k"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
}

// WeightsConfig holds the composite score weights.
type WeightsConfig struct {
	Similarity float64 `yaml:"similarity"`
	Skill      float64 `yaml:"skill"`
	Experience float64 `yaml:"experience"`
}

// EmbeddingConfig holds encoder settings.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
	Cache      CacheConfig               `yaml:"cache"`
}

// ProviderConfig holds encoder provider credentials.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig selects the provider and model used to encode text.
type VectorizerConfig struct {
	Provider             string `yaml:"provider"`
	Model                string `yaml:"model"`
	Dimensions           int    `yaml:"dimensions"`
	CandidateInstruction string `yaml:"candidate_instruction"`
	JobInstruction       string `yaml:"job_instruction"`
}

// CacheConfig holds encoder cache settings.
type CacheConfig struct {
	LRUSize   int `yaml:"lru_size"`    // 0 disables the in-process memo
	LRUTTLSec int `yaml:"lru_ttl_sec"` // 0 means no expiry
	KVTTLSec  int `yaml:"kv_ttl_sec"`  // valkey/redis cache; 0 disables it
}

// ResilienceConfig holds encoder retry and circuit breaker settings.
type ResilienceConfig struct {
	RetryMaxAttempts     int `yaml:"retry_max_attempts"`
	RetryInitialMS       int `yaml:"retry_initial_ms"`
	RetryMaxElapsedMS    int `yaml:"retry_max_elapsed_ms"`
	BreakerFailures      int `yaml:"breaker_failures"`
	BreakerOpenSec       int `yaml:"breaker_open_sec"`
	BreakerHalfOpenProbe int `yaml:"breaker_half_open_probes"`
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

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
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

// GetEnv returns the current environment from VECMATCH_ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("VECMATCH_ENV"); env != "" {
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "vecmatch"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Index.Metric == "" {
		c.Index.Metric = "cosine"
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = c.Embedding.Vectorizer.Dimensions
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Matching.Weights == (WeightsConfig{}) {
		c.Matching.Weights = WeightsConfig{Similarity: 60, Skill: 30, Experience: 10}
	}
	if c.Matching.SkillMatchFloor <= 0 {
		c.Matching.SkillMatchFloor = 0.5
	}
	if c.Matching.DefaultTopK <= 0 {
		c.Matching.DefaultTopK = 50
	}
	if c.Matching.MaxBatchSize <= 0 {
		c.Matching.MaxBatchSize = 100
	}
	if c.Embedding.Vectorizer.Provider == "" {
		c.Embedding.Vectorizer.Provider = ProviderOpenAI
	}
	if c.Resilience.RetryMaxAttempts <= 0 {
		c.Resilience.RetryMaxAttempts = 3
	}
	if c.Resilience.RetryInitialMS <= 0 {
		c.Resilience.RetryInitialMS = 200
	}
	if c.Resilience.RetryMaxElapsedMS <= 0 {
		c.Resilience.RetryMaxElapsedMS = 5000
	}
	if c.Resilience.BreakerFailures <= 0 {
		c.Resilience.BreakerFailures = 5
	}
	if c.Resilience.BreakerOpenSec <= 0 {
		c.Resilience.BreakerOpenSec = 30
	}
	if c.Resilience.BreakerHalfOpenProbe <= 0 {
		c.Resilience.BreakerHalfOpenProbe = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of memory, valkey, redis, postgres, got %q", c.Database.Driver)
	}

	if c.Index.Dimensions <= 0 {
		return fmt.Errorf("index.dimensions (or embedding.vectorizer.dimensions) must be positive, got %d", c.Index.Dimensions)
	}
	if vd := c.Embedding.Vectorizer.Dimensions; vd > 0 && vd != c.Index.Dimensions {
		return fmt.Errorf("embedding.vectorizer.dimensions %d disagrees with index.dimensions %d", vd, c.Index.Dimensions)
	}
	if c.Index.Metric != "cosine" {
		return fmt.Errorf("index.metric must be \"cosine\", got %q", c.Index.Metric)
	}

	v := c.Embedding.Vectorizer
	if !slices.Contains([]string{ProviderOpenAI, ProviderGemini}, v.Provider) {
		return fmt.Errorf("embedding.vectorizer.provider must be \"openai\" or \"gemini\", got %q", v.Provider)
	}
	if v.Model == "" {
		return fmt.Errorf("embedding.vectorizer.model is required")
	}
	if _, ok := c.Embedding.Providers[v.Provider]; !ok {
		return fmt.Errorf("embedding.providers.%s is not configured", v.Provider)
	}
	if c.Embedding.Cache.LRUSize < 0 || c.Embedding.Cache.LRUTTLSec < 0 || c.Embedding.Cache.KVTTLSec < 0 {
		return fmt.Errorf("embedding.cache values must be non-negative")
	}

	w := c.Matching.Weights
	for name, val := range map[string]float64{"similarity": w.Similarity, "skill": w.Skill, "experience": w.Experience} {
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("matching.weights.%s must be a non-negative number, got %v", name, val)
		}
	}
	if c.Matching.SkillMatchFloor > 1 {
		return fmt.Errorf("matching.skill_match_floor must be in [0, 1], got %v", c.Matching.SkillMatchFloor)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
