package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEncoderMetrics()
	os.Exit(m.Run())
}

type mockEncoder struct {
	mu          sync.Mutex
	result      domain.EncodingResult
	err         error
	errs        []error // consumed one per call before err
	batchResult domain.BatchEncodingResult
	batchErr    error
	calls       int
	batchCalls  int
	batchSizes  []int
}

func (m *mockEncoder) nextErr() error {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return m.err
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.nextErr(); err != nil {
		return domain.EncodingResult{}, err
	}
	return m.result, nil
}

func (m *mockEncoder) BatchEncode(_ context.Context, texts []string) (domain.BatchEncodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEncodingResult{}, m.batchErr
	}
	if err := m.nextErr(); err != nil {
		return domain.BatchEncodingResult{}, err
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

func TestInstrumentedEncoder_Success(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodingResult{
		Vector: []float32{0.1, 0.2, 0.3},
	}}
	p := NewInstrumentedEncoder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Encode(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Vector) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Vector))
	}
}

func TestInstrumentedEncoder_PassesTokens(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodingResult{
		Vector:       []float32{0.1, 0.2},
		PromptTokens: 100,
		TotalTokens:  100,
	}}
	p := NewInstrumentedEncoder(inner, "test-usage", "test-model-u", nil)

	result, err := p.Encode(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTokens != 100 {
		t.Errorf("expected 100 total tokens, got %d", result.TotalTokens)
	}
}

func TestInstrumentedEncoder_ClassifiesErrors(t *testing.T) {
	inner := &mockEncoder{err: errors.New("provider down")}
	p := NewInstrumentedEncoder(inner, "test-err", "test-model-e", zap.NewNop())

	_, err := p.Encode(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestInstrumentedEncoder_KeepsSentinelChain(t *testing.T) {
	inner := &mockEncoder{err: fmt.Errorf("%w: %w", domain.ErrEncoding, domain.ErrEncoderUnavailable)}
	p := NewInstrumentedEncoder(inner, "test-open", "m", zap.NewNop())

	_, err := p.Encode(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEncoding) || !errors.Is(err, domain.ErrEncoderUnavailable) {
		t.Fatalf("expected ErrEncoding and ErrEncoderUnavailable, got %v", err)
	}
}

func TestInstrumentedEncoder_BatchChunking(t *testing.T) {
	inner := &mockEncoder{result: domain.EncodingResult{Vector: []float32{1}, TotalTokens: 2}}
	p := NewInstrumentedEncoder(inner, "test-chunk", "m", zap.NewNop())

	texts := make([]string, DefaultMaxAPIBatchSize*2+10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	res, err := p.BatchEncode(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(res.Vectors))
	}
	if inner.batchCalls != 3 {
		t.Fatalf("expected 3 provider calls, got %d", inner.batchCalls)
	}
	if inner.batchSizes[2] != 10 {
		t.Errorf("expected last chunk of 10, got %d", inner.batchSizes[2])
	}
	if res.TotalTokens != 2*len(texts) {
		t.Errorf("expected %d tokens, got %d", 2*len(texts), res.TotalTokens)
	}
}

func TestInstrumentedEncoder_BatchEmpty(t *testing.T) {
	inner := &mockEncoder{}
	p := NewInstrumentedEncoder(inner, "test-empty", "m", zap.NewNop())

	res, err := p.BatchEncode(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != 0 || inner.batchCalls != 0 {
		t.Fatalf("expected no provider call, got %d", inner.batchCalls)
	}
}

func TestInstrumentedEncoder_BatchError(t *testing.T) {
	inner := &mockEncoder{batchErr: errors.New("boom")}
	p := NewInstrumentedEncoder(inner, "test-batch-err", "m", zap.NewNop())

	_, err := p.BatchEncode(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

type healthyEncoder struct {
	mockEncoder
	healthErr error
}

func (h *healthyEncoder) HealthCheck(context.Context) error { return h.healthErr }

func TestInstrumentedEncoder_HealthCheck(t *testing.T) {
	p := NewInstrumentedEncoder(&mockEncoder{}, "t", "m", nil)
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("encoder without checker should be healthy, got %v", err)
	}

	want := errors.New("unreachable")
	p = NewInstrumentedEncoder(&healthyEncoder{healthErr: want}, "t", "m", nil)
	if err := p.HealthCheck(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
