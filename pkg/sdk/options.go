package vecmatch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Backend drivers.
const (
	driverMemory   = "memory"
	driverValkey   = "valkey"
	driverRedis    = "redis"
	driverPostgres = "postgres"
)

type clientConfig struct {
	driver    string
	addrs     []string
	password  string
	dsn       string
	keyPrefix string

	encoder Encoder

	dimensions      int
	weights         *Weights
	hnswM           int
	hnswEFConstruct int
	maxBatchSize    int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// Weights are the contributions of similarity, skill coverage and experience
// fit to the overall score, which ranges from 0 to their sum.
type Weights struct {
	Similarity float64
	Skill      float64
	Experience float64
}

// WithMemory keeps the index in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
	})
}

// WithValkey stores the index in a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores the index in a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores the index in PostgreSQL with the pgvector extension.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverPostgres
		c.dsn = dsn
	})
}

// WithKeyPrefix namespaces Valkey/Redis keys and PostgreSQL tables.
// Default: "vecmatch".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEncoder sets the text embedding provider. Required.
func WithEncoder(e Encoder) Option {
	return optionFunc(func(c *clientConfig) {
		c.encoder = e
	})
}

// WithDimensions sets the embedding dimension of both indexes. Required.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithWeights overrides the default 60/30/10 ranking weights.
func WithWeights(similarity, skill, experience float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.weights = &Weights{Similarity: similarity, Skill: skill, Experience: experience}
	})
}

// WithHNSW configures HNSW index parameters for the Valkey, Redis and
// PostgreSQL backends. Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithMaxBatchSize sets the maximum number of records per batch upsert.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
