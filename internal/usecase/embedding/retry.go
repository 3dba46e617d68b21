package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// RetrySettings configures retries of transient encoder failures.
type RetrySettings struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// Retryable decides whether an encoder error is worth another attempt.
type Retryable func(error) bool

// RetryEncoder retries transient provider failures with exponential backoff.
// It sits inside the circuit breaker, so one breaker sample covers all attempts.
type RetryEncoder struct {
	inner     domain.Encoder
	settings  RetrySettings
	retryable Retryable
	provider  string
	logger    *zap.Logger
}

// NewRetryEncoder wraps inner. A nil retryable retries rate limits and
// everything that is not a caller cancellation.
func NewRetryEncoder(inner domain.Encoder, provider string, s RetrySettings, retryable Retryable, logger *zap.Logger) *RetryEncoder {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}
	if s.InitialInterval <= 0 {
		s.InitialInterval = 200 * time.Millisecond
	}
	if retryable == nil {
		retryable = DefaultRetryable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryEncoder{inner: inner, settings: s, retryable: retryable, provider: provider, logger: logger}
}

// DefaultRetryable treats everything except cancellation and invalid input as transient.
func DefaultRetryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrInvalidArgument):
		return false
	default:
		return true
	}
}

func (r *RetryEncoder) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.settings.InitialInterval
	b.MaxElapsedTime = r.settings.MaxElapsedTime
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.settings.MaxAttempts-1)), ctx) //nolint:gosec // positive
}

func (r *RetryEncoder) do(ctx context.Context, op func() error) error {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			metrics.EncoderRetriesTotal.WithLabelValues(r.provider).Inc()
		}
		err := op()
		if err != nil && !r.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.policy(ctx))
	if err != nil && attempt > 1 {
		r.logger.Warn("Encoder retries exhausted",
			zap.String("provider", r.provider),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
	return err
}

// Encode calls the inner encoder, retrying transient failures.
func (r *RetryEncoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	var res domain.EncodingResult
	err := r.do(ctx, func() error {
		var err error
		res, err = r.inner.Encode(ctx, text)
		return err
	})
	if err != nil {
		return domain.EncodingResult{}, fmt.Errorf("retry: %w", err)
	}
	return res, nil
}

// BatchEncode calls the inner batch encoder, retrying transient failures.
func (r *RetryEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	var res domain.BatchEncodingResult
	err := r.do(ctx, func() error {
		var err error
		res, err = domain.BatchEncode(ctx, r.inner, texts)
		return err
	})
	if err != nil {
		return domain.BatchEncodingResult{}, fmt.Errorf("retry batch: %w", err)
	}
	return res, nil
}
