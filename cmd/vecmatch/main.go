package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/config"
	dbPostgres "github.com/kailas-cloud/vecmatch/internal/db/postgres"
	dbValkey "github.com/kailas-cloud/vecmatch/internal/db/valkey"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	"github.com/kailas-cloud/vecmatch/internal/domain/scoring"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
	"github.com/kailas-cloud/vecmatch/internal/repository/embcache"
	"github.com/kailas-cloud/vecmatch/internal/repository/kvindex"
	"github.com/kailas-cloud/vecmatch/internal/repository/memory"
	"github.com/kailas-cloud/vecmatch/internal/repository/pgindex"
	chiTransport "github.com/kailas-cloud/vecmatch/internal/transport/chi"
	geminiEnc "github.com/kailas-cloud/vecmatch/internal/transport/gemini"
	openaiEnc "github.com/kailas-cloud/vecmatch/internal/transport/openai"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	embeddinguc "github.com/kailas-cloud/vecmatch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchinguc "github.com/kailas-cloud/vecmatch/internal/usecase/matching"
	"github.com/kailas-cloud/vecmatch/internal/version"
)

// vectorIndex is what every backend offers to the composition root.
type vectorIndex interface {
	matchinguc.Index
	Ping(ctx context.Context) error
}

// cacheStore is the key-value surface the persistent encoder cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// backend bundles the chosen index with its shutdown hook.
type backend struct {
	index vectorIndex
	cache cacheStore // nil unless the driver is valkey or redis
	close func()
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecmatch API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("dimensions", cfg.Index.Dimensions),
	)

	metrics.RegisterEncoderMetrics()
	metrics.RegisterMatchingMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open vector index backend", zap.Error(err))
	}
	defer be.close()
	logger.Info("Connected to vector index backend", zap.String("driver", cfg.Database.Driver))

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create encoder provider", zap.Error(err))
	}
	encoder := buildEncoder(cfg, provider, be.cache, logger)
	encoders := profile.WithInstructions(encoder,
		cfg.Embedding.Vectorizer.CandidateInstruction,
		cfg.Embedding.Vectorizer.JobInstruction,
	)
	logger.Info("Encoder chain created",
		zap.String("provider", cfg.Embedding.Vectorizer.Provider),
		zap.String("model", cfg.Embedding.Vectorizer.Model),
		zap.Int("lru_size", cfg.Embedding.Cache.LRUSize),
		zap.Bool("kv_cache", be.cache != nil && cfg.Embedding.Cache.KVTTLSec > 0),
	)

	w := cfg.Matching.Weights
	matchingSvc, err := matchinguc.New(be.index, encoders, logger).WithWeights(scoring.Weights{
		Similarity: w.Similarity,
		Skill:      w.Skill,
		Experience: w.Experience,
	})
	if err != nil {
		logger.Fatal("Invalid ranking weights", zap.Error(err))
	}

	spec, err := index.NewSpec(cfg.Index.Dimensions, index.Metric(cfg.Index.Metric))
	if err != nil {
		logger.Fatal("Invalid index settings", zap.Error(err))
	}
	if err := matchingSvc.EnsureIndexes(ctx, spec); err != nil {
		logger.Fatal("Failed to ensure indexes", zap.Error(err))
	}

	batchSvc := batchuc.New(be.index, encoders).WithMaxBatchSize(cfg.Matching.MaxBatchSize)
	healthSvc := healthuc.New(be.index, newEncoderHealthChecker(provider))

	server := chiTransport.NewServer(matchingSvc, batchSvc, healthSvc, logger).
		WithMatchDefaults(chiTransport.MatchDefaults{
			TopK:            cfg.Matching.DefaultTopK,
			SkillMatchFloor: cfg.Matching.SkillMatchFloor,
		})
	handler := chiTransport.NewRouter(server, chiTransport.RouterOptions{APIKeys: cfg.Auth.APIKeys})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openBackend connects the configured index driver and waits until it answers.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	db := cfg.Database
	readiness := time.Duration(db.ReadinessTimeout) * time.Second

	switch db.Driver {
	case config.DriverMemory:
		return &backend{index: memory.New(), close: func() {}}, nil

	case config.DriverValkey, config.DriverRedis:
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    db.Addrs,
			Username: db.Username,
			Password: db.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", db.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", db.Driver, err)
		}
		idx := kvindex.New(store, db.KeyPrefix, kvindex.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}, logger)
		return &backend{index: idx, cache: store, close: store.Close}, nil

	case config.DriverPostgres:
		pg, err := dbPostgres.Open(dbPostgres.Config{DSN: db.DSN, MaxOpenConns: db.MaxOpenConns})
		if err != nil {
			return nil, err
		}
		if err := dbPostgres.WaitForReady(ctx, pg, readiness); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		idx := pgindex.New(pg, db.KeyPrefix, pgindex.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}, logger)
		return &backend{index: idx, close: func() { _ = pg.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", db.Driver)
}

// provider is a raw embedding client together with its retry classifier.
type provider struct {
	name      string
	encoder   domain.Encoder
	retryable embeddinguc.Retryable
}

func newProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (provider, error) {
	v := cfg.Embedding.Vectorizer
	creds := cfg.Embedding.Providers[v.Provider]

	switch v.Provider {
	case config.ProviderOpenAI:
		enc := openaiEnc.NewEncoder(&openaiEnc.Config{
			APIKey:     creds.APIKey,
			BaseURL:    creds.BaseURL,
			Model:      v.Model,
			Dimensions: v.Dimensions,
			Logger:     logger,
		})
		return provider{name: v.Provider, encoder: enc, retryable: openaiEnc.Retryable}, nil

	case config.ProviderGemini:
		enc, err := geminiEnc.NewEncoder(ctx, &geminiEnc.Config{
			APIKey:     creds.APIKey,
			Model:      v.Model,
			Dimensions: v.Dimensions,
			TaskType:   "SEMANTIC_SIMILARITY",
			Logger:     logger,
		})
		if err != nil {
			return provider{}, err
		}
		return provider{name: v.Provider, encoder: enc, retryable: geminiEnc.Retryable}, nil
	}
	return provider{}, fmt.Errorf("unknown encoder provider %q", v.Provider)
}

// buildEncoder assembles the decorator chain:
// provider -> retry -> breaker -> kv cache -> lru -> instrumented.
// Instruction prefixes are applied per class on top of it.
func buildEncoder(cfg config.Config, p provider, kv cacheStore, logger *zap.Logger) domain.Encoder {
	res := cfg.Resilience
	model := cfg.Embedding.Vectorizer.Model

	var enc domain.Encoder = embeddinguc.NewRetryEncoder(p.encoder, p.name, embeddinguc.RetrySettings{
		MaxAttempts:     res.RetryMaxAttempts,
		InitialInterval: time.Duration(res.RetryInitialMS) * time.Millisecond,
		MaxElapsedTime:  time.Duration(res.RetryMaxElapsedMS) * time.Millisecond,
	}, p.retryable, logger)

	enc = embeddinguc.NewBreakerEncoder(enc, embeddinguc.BreakerSettings{
		Name:             p.name,
		Failures:         res.BreakerFailures,
		OpenTimeout:      time.Duration(res.BreakerOpenSec) * time.Second,
		HalfOpenRequests: res.BreakerHalfOpenProbe,
	}, logger)

	cache := cfg.Embedding.Cache
	if kv != nil && cache.KVTTLSec > 0 {
		enc = embcache.New(enc, kv, embcache.Options{
			KeyPrefix: cfg.Database.KeyPrefix,
			Model:     model,
			TTL:       time.Duration(cache.KVTTLSec) * time.Second,
		}, metrics.EncoderCacheTotal, logger)
	}
	if cache.LRUSize > 0 {
		enc = embeddinguc.NewLRUEncoder(enc, cache.LRUSize, time.Duration(cache.LRUTTLSec)*time.Second)
	}

	return embeddinguc.NewInstrumentedEncoder(enc, p.name, model, logger)
}

// encoderHealthChecker probes the raw provider, bypassing every cache layer.
type encoderHealthChecker struct {
	encoder domain.Encoder
}

func newEncoderHealthChecker(p provider) *encoderHealthChecker {
	return &encoderHealthChecker{encoder: p.encoder}
}

func (h *encoderHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.encoder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("encoder health check: %w", err)
		}
	}
	return nil
}
