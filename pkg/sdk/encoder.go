package vecmatch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Encoder converts text to an embedding vector.
type Encoder interface {
	Encode(ctx context.Context, text string) (EncodingResult, error)
}

// BatchEncoder vectorizes multiple texts in a single call.
// Optional: when the Encoder also implements it, batch upserts use it.
type BatchEncoder interface {
	BatchEncode(ctx context.Context, texts []string) (BatchEncodingResult, error)
}

// EncodingResult carries the vector and token counts.
type EncodingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEncodingResult carries one vector per input text and aggregate token usage.
type BatchEncodingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// encoderAdapter wraps the public Encoder to satisfy domain.Encoder and domain.BatchEncoder.
type encoderAdapter struct {
	inner Encoder
}

func (a *encoderAdapter) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	r, err := a.inner.Encode(ctx, text)
	if err != nil {
		return domain.EncodingResult{}, fmt.Errorf("encode: %w", err)
	}
	return domain.EncodingResult{
		Vector:       r.Vector,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *encoderAdapter) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	be, ok := a.inner.(BatchEncoder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEncode(ctx, texts)
	if err != nil {
		return domain.BatchEncodingResult{}, fmt.Errorf("batch encode: %w", err)
	}
	if len(r.Vectors) != len(texts) {
		return domain.BatchEncodingResult{}, fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrEncoding, len(r.Vectors), len(texts))
	}
	return domain.BatchEncodingResult{
		Vectors:      r.Vectors,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck forwards to the inner encoder when it exposes one.
func (a *encoderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
