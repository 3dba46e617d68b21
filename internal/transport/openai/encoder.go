// Package openai adapts OpenAI-compatible embedding APIs (OpenAI, Nebius, vLLM) to domain.Encoder.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Encoder is an embedding provider over the OpenAI-compatible /embeddings endpoint.
type Encoder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible encoder.
func NewEncoder(cfg *Config) *Encoder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Encoder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		logger:     logger,
	}
}

func (e *Encoder) request(texts []string) openai.EmbeddingRequest {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	return req
}

// Encode implements domain.Encoder.
func (e *Encoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	resp, err := e.client.CreateEmbeddings(ctx, e.request([]string{text}))
	if err != nil {
		return domain.EncodingResult{}, parseAPIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EncodingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEncoding)
	}

	return domain.EncodingResult{
		Vector:       resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// BatchEncode implements domain.BatchEncoder. Vectors are returned in input order.
func (e *Encoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodingResult{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, e.request(texts))
	if err != nil {
		return domain.BatchEncodingResult{}, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return domain.BatchEncodingResult{}, fmt.Errorf("embedding count mismatch: got %d, want %d: %w",
			len(resp.Data), len(texts), domain.ErrEncoding)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	e.logger.Debug("Batch encoded", zap.Int("texts", len(texts)), zap.Int("tokens", resp.Usage.TotalTokens))

	return domain.BatchEncodingResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// StatusError carries the provider HTTP status of a failed call.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding API error %d: %s", e.Status, e.Message)
}

// Retryable reports whether a failed call may succeed on retry:
// rate limits, timeouts, server errors and transport failures.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.Status == http.StatusTooManyRequests, se.Status == http.StatusRequestTimeout:
		return true
	case se.Status >= 500:
		return true
	default:
		return false
	}
}

// parseAPIError wraps provider errors with domain.ErrEncoding; 429 also carries ErrRateLimited.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request: %w", err)
	}

	var se *StatusError
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		se = &StatusError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	case errors.As(err, &reqErr):
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		se = &StatusError{Status: reqErr.HTTPStatusCode, Message: msg}
	default:
		return fmt.Errorf("embedding request failed: %w: %w", domain.ErrEncoding, err)
	}

	if se.Status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w: %w", domain.ErrEncoding, domain.ErrRateLimited, se)
	}
	return fmt.Errorf("%w: %w", domain.ErrEncoding, se)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
