package domain

import (
	"context"
	"fmt"
)

// Encoder is the shared text vectorization contract between layers.
type Encoder interface {
	Encode(ctx context.Context, text string) (EncodingResult, error)
}

// BatchEncoder vectorizes multiple texts in a single provider call.
type BatchEncoder interface {
	BatchEncode(ctx context.Context, texts []string) (BatchEncodingResult, error)
}

// HealthChecker verifies encoder provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EncodingResult carries the vector and token usage through the decorator chain.
type EncodingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEncodingResult carries multiple vectors and aggregate token usage.
type BatchEncodingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Encode once per text for providers without a native batch call.
func BatchFallback(ctx context.Context, e Encoder, texts []string) (BatchEncodingResult, error) {
	vectors := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Encode(ctx, text)
		if err != nil {
			return BatchEncodingResult{}, fmt.Errorf("fallback encode [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEncodingResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// BatchEncode uses the native batch call when e supports it and falls back otherwise.
func BatchEncode(ctx context.Context, e Encoder, texts []string) (BatchEncodingResult, error) {
	if be, ok := e.(BatchEncoder); ok {
		return be.BatchEncode(ctx, texts)
	}
	return BatchFallback(ctx, e, texts)
}

// InstructionEncoder is a domain decorator that prepends instruction text before encoding.
// Instruction-tuned models expect a task prefix such as "Represent this job posting".
type InstructionEncoder struct {
	inner       Encoder
	instruction string
}

// NewInstructionEncoder creates a decorator that prepends instruction text.
func NewInstructionEncoder(inner Encoder, instruction string) *InstructionEncoder {
	return &InstructionEncoder{inner: inner, instruction: instruction}
}

// Encode prepends the instruction and delegates to the inner encoder.
func (e *InstructionEncoder) Encode(ctx context.Context, text string) (EncodingResult, error) {
	result, err := e.inner.Encode(ctx, e.instruction+text)
	if err != nil {
		return EncodingResult{}, fmt.Errorf("instruction encode: %w", err)
	}
	return result, nil
}

// BatchEncode prepends the instruction to each text and delegates to the inner encoder.
func (e *InstructionEncoder) BatchEncode(ctx context.Context, texts []string) (BatchEncodingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}

	res, err := BatchEncode(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEncodingResult{}, fmt.Errorf("instruction batch encode: %w", err)
	}
	return res, nil
}
