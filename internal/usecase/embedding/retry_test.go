package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

func fastRetry(attempts int) RetrySettings {
	return RetrySettings{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxElapsedTime: time.Second}
}

func TestRetryEncoder_RecoversFromTransient(t *testing.T) {
	inner := &mockEncoder{
		errs:   []error{domain.ErrRateLimited, errors.New("503")},
		result: domain.EncodingResult{Vector: []float32{1}},
	}
	r := NewRetryEncoder(inner, "test", fastRetry(3), nil, nil)

	res, err := r.Encode(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vector) != 1 {
		t.Fatalf("unexpected vector %v", res.Vector)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryEncoder_GivesUp(t *testing.T) {
	want := errors.New("still down")
	inner := &mockEncoder{err: want}
	r := NewRetryEncoder(inner, "test", fastRetry(2), nil, nil)

	_, err := r.Encode(context.Background(), "x")
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", inner.calls)
	}
}

func TestRetryEncoder_PermanentError(t *testing.T) {
	inner := &mockEncoder{err: domain.ErrInvalidArgument}
	r := NewRetryEncoder(inner, "test", fastRetry(5), nil, nil)

	_, err := r.Encode(context.Background(), "x")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("permanent error must not be retried, calls=%d", inner.calls)
	}
}

func TestRetryEncoder_CustomRetryable(t *testing.T) {
	inner := &mockEncoder{err: domain.ErrRateLimited}
	never := func(error) bool { return false }
	r := NewRetryEncoder(inner, "test", fastRetry(5), never, nil)

	if _, err := r.Encode(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.calls)
	}
}

func TestRetryEncoder_StopsOnCancel(t *testing.T) {
	inner := &mockEncoder{err: errors.New("down")}
	r := NewRetryEncoder(inner, "test", RetrySettings{MaxAttempts: 100, InitialInterval: 50 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Encode(ctx, "x"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls > 1 {
		t.Fatalf("cancelled context should stop retries, calls=%d", inner.calls)
	}
}

func TestRetryEncoder_Batch(t *testing.T) {
	inner := &mockEncoder{
		errs:   []error{errors.New("flaky")},
		result: domain.EncodingResult{Vector: []float32{1}},
	}
	r := NewRetryEncoder(inner, "test", fastRetry(2), nil, nil)

	res, err := r.BatchEncode(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != 2 || inner.batchCalls != 2 {
		t.Fatalf("expected 2 vectors after 2 calls, got %d vectors, %d calls", len(res.Vectors), inner.batchCalls)
	}
}
