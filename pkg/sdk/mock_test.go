package vecmatch

import (
	"context"
	"strings"
	"testing"

	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
)

// --- matchingUseCase mock ---

type mockMatchingUC struct {
	upsertFn          func(ctx context.Context, rec profile.Record) error
	deleteCandidateFn func(ctx context.Context, id string) error
	deleteJobFn       func(ctx context.Context, id string) error
	findMatchesFn     func(ctx context.Context, q match.Query) (match.Response, error)
	recommendJobsFn   func(ctx context.Context, q match.Query) (match.Response, error)
}

func (m *mockMatchingUC) Upsert(ctx context.Context, rec profile.Record) error {
	return m.upsertFn(ctx, rec)
}

func (m *mockMatchingUC) DeleteCandidate(ctx context.Context, id string) error {
	return m.deleteCandidateFn(ctx, id)
}

func (m *mockMatchingUC) DeleteJob(ctx context.Context, id string) error {
	return m.deleteJobFn(ctx, id)
}

func (m *mockMatchingUC) FindMatches(ctx context.Context, q match.Query) (match.Response, error) {
	return m.findMatchesFn(ctx, q)
}

func (m *mockMatchingUC) RecommendJobs(ctx context.Context, q match.Query) (match.Response, error) {
	return m.recommendJobsFn(ctx, q)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	upsertFn func(ctx context.Context, class entity.Class, records []profile.Record) []dombatch.Result
	deleteFn func(ctx context.Context, class entity.Class, ids []string) []dombatch.Result
}

func (m *mockBatchUC) Upsert(ctx context.Context, class entity.Class, records []profile.Record) []dombatch.Result {
	return m.upsertFn(ctx, class, records)
}

func (m *mockBatchUC) Delete(ctx context.Context, class entity.Class, ids []string) []dombatch.Result {
	return m.deleteFn(ctx, class, ids)
}

// --- Encoder fakes ---

type mockEncoder struct {
	fn func(ctx context.Context, text string) (EncodingResult, error)
}

func (m *mockEncoder) Encode(ctx context.Context, text string) (EncodingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEncoder struct {
	mockEncoder
	batchFn func(ctx context.Context, texts []string) (BatchEncodingResult, error)
}

func (m *mockBatchEncoder) BatchEncode(ctx context.Context, texts []string) (BatchEncodingResult, error) {
	return m.batchFn(ctx, texts)
}

// keywordEncoder maps text onto three axes: Go, Java and everything else.
type keywordEncoder struct{}

func (keywordEncoder) Encode(_ context.Context, text string) (EncodingResult, error) {
	t := strings.ToLower(text)
	var v []float32
	switch {
	case strings.Contains(t, "golang"):
		v = []float32{1, 0.1, 0}
	case strings.Contains(t, "java"):
		v = []float32{0.1, 1, 0}
	default:
		v = []float32{0, 0, 1}
	}
	return EncodingResult{Vector: v, PromptTokens: 1, TotalTokens: 1}, nil
}

// --- helpers ---

func testClient(m matchingUseCase, b batchUseCase) *Client {
	return &Client{matching: m, batch: b}
}

func newMemoryClient(t testing.TB, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithMemory(), WithEncoder(keywordEncoder{}), WithDimensions(3)}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func intPtr(v int) *int { return &v }
