package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

type mockEncoder struct {
	result      domain.EncodingResult
	err         error
	batchResult domain.BatchEncodingResult
	batchErr    error
	calls       int
	batchCalls  int
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEncoder) BatchEncode(_ context.Context, texts []string) (domain.BatchEncodingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEncodingResult{}, m.batchErr
	}
	if m.batchResult.Vectors != nil {
		return m.batchResult, nil
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = m.result.Vector
	}
	return domain.BatchEncodingResult{
		Vectors:      vectors,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEncoder(t *testing.T, inner *mockEncoder) (*CachedEncoder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, Options{KeyPrefix: "vecmatch", Model: "test-model", TTL: time.Hour},
		metrics.EncoderCacheTotal, zap.NewNop())
	return ce, ms
}
