package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// LRUEncoder memoizes vectors in process. A hit reports zero tokens.
type LRUEncoder struct {
	inner domain.Encoder
	cache *expirable.LRU[string, []float32]
}

// NewLRUEncoder wraps inner with an expiring LRU of the given size.
// A ttl of zero keeps entries until they are evicted by size.
func NewLRUEncoder(inner domain.Encoder, size int, ttl time.Duration) *LRUEncoder {
	return &LRUEncoder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Encode returns the memoized vector or calls the inner encoder.
func (l *LRUEncoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	if vec, ok := l.cache.Get(text); ok {
		metrics.EncoderCacheTotal.WithLabelValues("lru", "hit").Inc()
		return domain.EncodingResult{Vector: slices.Clone(vec)}, nil
	}
	metrics.EncoderCacheTotal.WithLabelValues("lru", "miss").Inc()

	res, err := l.inner.Encode(ctx, text)
	if err != nil {
		return domain.EncodingResult{}, fmt.Errorf("lru: %w", err)
	}
	if len(res.Vector) > 0 {
		l.cache.Add(text, slices.Clone(res.Vector))
	}
	return res, nil
}

// BatchEncode serves hits from the cache and sends only misses to the inner encoder.
func (l *LRUEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if vec, ok := l.cache.Get(t); ok {
			vectors[i] = slices.Clone(vec)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	metrics.EncoderCacheTotal.WithLabelValues("lru", "hit").Add(float64(len(texts) - len(missIdx)))
	metrics.EncoderCacheTotal.WithLabelValues("lru", "miss").Add(float64(len(missIdx)))

	if len(missTexts) == 0 {
		return domain.BatchEncodingResult{Vectors: vectors}, nil
	}

	res, err := domain.BatchEncode(ctx, l.inner, missTexts)
	if err != nil {
		return domain.BatchEncodingResult{}, fmt.Errorf("lru batch: %w", err)
	}
	if len(res.Vectors) != len(missTexts) {
		return domain.BatchEncodingResult{}, fmt.Errorf("lru batch: got %d vectors for %d texts: %w",
			len(res.Vectors), len(missTexts), domain.ErrEncoding)
	}
	for n, i := range missIdx {
		vectors[i] = res.Vectors[n]
		if len(res.Vectors[n]) > 0 {
			l.cache.Add(missTexts[n], slices.Clone(res.Vectors[n]))
		}
	}
	return domain.BatchEncodingResult{
		Vectors:      vectors,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// Len returns the number of memoized vectors.
func (l *LRUEncoder) Len() int { return l.cache.Len() }
