// Package embcache caches encoder output in a shared key-value store so that
// every replica reuses vectors computed by any other.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// store is the consumer interface for the encoding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures cache keys and expiry.
type Options struct {
	KeyPrefix string        // e.g. "vecmatch"
	Model     string        // part of the key so a model switch never serves stale vectors
	TTL       time.Duration // zero keeps entries forever
}

// CachedEncoder caches vectors in a key-value store.
type CachedEncoder struct {
	inner      domain.Encoder
	store      store
	opts       Options
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with labels ("layer", "result"), passed explicitly.
func New(
	inner domain.Encoder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEncoder{
		inner:      inner,
		store:      s,
		opts:       opts,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Encode returns a cached vector or calls the inner encoder.
// A hit reports zero tokens.
func (c *CachedEncoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit", 1)
		return domain.EncodingResult{Vector: vec}, nil
	}

	c.incCache("miss", 1)

	result, err := c.inner.Encode(ctx, text)
	if err != nil {
		return domain.EncodingResult{}, fmt.Errorf("encode text: %w", err)
	}

	c.putToCache(ctx, key, result.Vector)
	return result, nil
}

// BatchEncode serves hits from the cache and sends misses to the inner encoder in one batch.
func (c *CachedEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodingResult{}, nil
	}

	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		keys[i] = c.cacheKey(t)
		if vec, ok := c.getFromCache(ctx, keys[i]); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.incCache("hit", len(texts)-len(missIdx))
	c.incCache("miss", len(missIdx))

	if len(missTexts) == 0 {
		return domain.BatchEncodingResult{Vectors: vectors}, nil
	}

	res, err := domain.BatchEncode(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEncodingResult{}, fmt.Errorf("batch encode: %w", err)
	}
	if len(res.Vectors) != len(missTexts) {
		return domain.BatchEncodingResult{}, fmt.Errorf("batch encode: got %d vectors for %d texts: %w",
			len(res.Vectors), len(missTexts), domain.ErrEncoding)
	}

	for n, i := range missIdx {
		vectors[i] = res.Vectors[n]
		c.putToCache(ctx, keys[i], res.Vectors[n])
	}

	return domain.BatchEncodingResult{
		Vectors:      vectors,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEncoder) incCache(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues("kv", result).Add(float64(n))
	}
}

func (c *CachedEncoder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.opts.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return c.opts.KeyPrefix + ":emb_cache:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEncoder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached vector", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached vector", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEncoder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.opts.TTL); err != nil {
		c.logger.Warn("Failed to cache vector", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
