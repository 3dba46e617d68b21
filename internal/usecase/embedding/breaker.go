package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// BreakerSettings configures the encoder circuit breaker.
type BreakerSettings struct {
	Name             string
	Failures         int           // consecutive failures that open the circuit
	OpenTimeout      time.Duration // time spent open before probing
	HalfOpenRequests int           // probes allowed while half-open
}

// BreakerEncoder stops calling a failing provider for a while.
// Calls rejected by an open circuit fail with ErrEncoderUnavailable.
type BreakerEncoder struct {
	inner domain.Encoder
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerEncoder wraps inner with a circuit breaker.
func NewBreakerEncoder(inner domain.Encoder, s BreakerSettings, logger *zap.Logger) *BreakerEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Name == "" {
		s.Name = "encoder"
	}
	if s.Failures <= 0 {
		s.Failures = 5
	}
	if s.HalfOpenRequests <= 0 {
		s.HalfOpenRequests = 1
	}
	metrics.EncoderBreakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: uint32(s.HalfOpenRequests), //nolint:gosec // bounded by config validation
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(s.Failures) //nolint:gosec // positive
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EncoderBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("Encoder circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerEncoder{inner: inner, cb: cb}
}

// Encode runs the inner encoder through the breaker.
func (b *BreakerEncoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Encode(ctx, text)
	})
	if err != nil {
		return domain.EncodingResult{}, breakerError(err)
	}
	return out.(domain.EncodingResult), nil
}

// BatchEncode runs the inner batch call through the breaker.
func (b *BreakerEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return domain.BatchEncode(ctx, b.inner, texts)
	})
	if err != nil {
		return domain.BatchEncodingResult{}, breakerError(err)
	}
	return out.(domain.BatchEncodingResult), nil
}

// State returns the current breaker state.
func (b *BreakerEncoder) State() gobreaker.State { return b.cb.State() }

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w: %w", domain.ErrEncoding, domain.ErrEncoderUnavailable, err)
	}
	return fmt.Errorf("breaker: %w", err)
}
