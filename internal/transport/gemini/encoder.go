// Package gemini adapts the Google GenAI embedding API to domain.Encoder.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

const defaultModel = "gemini-embedding-001"

// models is the consumer interface over genai.Models.
type models interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// Config holds the Gemini encoder settings.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	// TaskType is sent with every request, e.g. SEMANTIC_SIMILARITY.
	TaskType string
	Logger   *zap.Logger
}

// Encoder is an embedding provider over the Gemini API.
type Encoder struct {
	models     models
	model      string
	dimensions int
	taskType   string
	logger     *zap.Logger
}

// NewEncoder creates a Gemini encoder.
func NewEncoder(ctx context.Context, cfg *Config) (*Encoder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newEncoder(client.Models, cfg), nil
}

func newEncoder(m models, cfg *Config) *Encoder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		models:     m,
		model:      model,
		dimensions: cfg.Dimensions,
		taskType:   cfg.TaskType,
		logger:     logger,
	}
}

func (e *Encoder) config() *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.dimensions)) //nolint:gosec // bounded by index.MaxDimensions
	}
	return cfg
}

// Encode implements domain.Encoder. The Gemini API reports no token usage.
func (e *Encoder) Encode(ctx context.Context, text string) (domain.EncodingResult, error) {
	res, err := e.BatchEncode(ctx, []string{text})
	if err != nil {
		return domain.EncodingResult{}, err
	}
	return domain.EncodingResult{Vector: res.Vectors[0]}, nil
}

// BatchEncode implements domain.BatchEncoder with one EmbedContent call.
func (e *Encoder) BatchEncode(ctx context.Context, texts []string) (domain.BatchEncodingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEncodingResult{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, e.config())
	if err != nil {
		return domain.BatchEncodingResult{}, wrapError(err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return domain.BatchEncodingResult{}, fmt.Errorf("embedding count mismatch: got %d, want %d: %w",
			got, len(texts), domain.ErrEncoding)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return domain.BatchEncodingResult{}, fmt.Errorf("empty embedding at %d: %w", i, domain.ErrEncoding)
		}
		vectors[i] = emb.Values
	}
	return domain.BatchEncodingResult{Vectors: vectors}, nil
}

// HealthCheck verifies the configured model is reachable.
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.models.Get(ctx, e.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", e.model, err)
	}
	return nil
}

// Retryable reports whether a failed call may succeed on retry.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.Code == http.StatusTooManyRequests ||
		apiErr.Code == http.StatusRequestTimeout ||
		apiErr.Code >= 500
}

func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embed content: %w", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("embed content: %w: %w: %w", domain.ErrEncoding, domain.ErrRateLimited, err)
	}
	return fmt.Errorf("embed content: %w: %w", domain.ErrEncoding, err)
}
