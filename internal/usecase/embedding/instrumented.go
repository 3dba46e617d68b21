package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest batch sent to the provider in one request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEncoder is the outer decorator of the encoder chain.
// It records metrics and logs, splits large batches and classifies failures as ErrEncoding.
type InstrumentedEncoder struct {
	inner    domain.Encoder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedEncoder wraps an encoder with logging and error classification.
func NewInstrumentedEncoder(inner domain.Encoder, provider, model string, logger *zap.Logger) *InstrumentedEncoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEncoder{inner: inner, provider: provider, model: model, logger: logger}
}

// Encode delegates to the inner encoder.
func (p *InstrumentedEncoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	start := time.Now()
	result, err := p.inner.Encode(ctx, text)
	duration := time.Since(start)
	p.observe(duration, err, result.PromptTokens, result.TotalTokens)

	if err != nil {
		p.logger.Warn("Encoding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EncodingResult{}, classify(err)
	}

	p.logger.Debug("Encoding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Vector)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEncode splits texts into provider-sized chunks and delegates.
func (p *InstrumentedEncoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodingResult{}, nil
	}

	start := time.Now()
	var out domain.BatchEncodingResult
	out.Vectors = make([][]float32, 0, len(texts))

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		end := min(offset+DefaultMaxAPIBatchSize, len(texts))
		chunk := texts[offset:end]

		chunkStart := time.Now()
		res, err := domain.BatchEncode(ctx, p.inner, chunk)
		p.observe(time.Since(chunkStart), err, res.PromptTokens, res.TotalTokens)
		if err != nil {
			p.logger.Warn("Batch encoding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEncodingResult{}, classify(err)
		}

		out.Vectors = append(out.Vectors, res.Vectors...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.logger.Debug("Batch encoding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck forwards to the inner encoder when it can check itself.
func (p *InstrumentedEncoder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (p *InstrumentedEncoder) observe(d time.Duration, err error, promptTokens, totalTokens int) {
	metrics.EncoderRequestDuration.WithLabelValues(p.provider, p.model).Observe(d.Seconds())
	if err != nil {
		metrics.EncoderRequestsTotal.WithLabelValues(p.provider, p.model, "error").Inc()
		metrics.EncoderErrorsTotal.WithLabelValues(p.provider, p.model, errorType(err)).Inc()
		return
	}
	metrics.EncoderRequestsTotal.WithLabelValues(p.provider, p.model, "ok").Inc()
	if promptTokens > 0 {
		metrics.EncoderTokensTotal.WithLabelValues(p.provider, p.model, "prompt").Add(float64(promptTokens))
	}
	if totalTokens > 0 {
		metrics.EncoderTokensTotal.WithLabelValues(p.provider, p.model, "total").Add(float64(totalTokens))
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrEncoderUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider"
	}
}

func classify(err error) error {
	if errors.Is(err, domain.ErrEncoding) {
		return fmt.Errorf("encode: %w", err)
	}
	return fmt.Errorf("encode: %w: %w", domain.ErrEncoding, err)
}
