package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
)

// mockMatcher; nil functions panic if called.
type mockMatcher struct {
	upsertFn    func(context.Context, profile.Record) error
	deleteCFn   func(context.Context, string) error
	deleteJFn   func(context.Context, string) error
	findFn      func(context.Context, match.Query) (match.Response, error)
	recommendFn func(context.Context, match.Query) (match.Response, error)
}

func (m *mockMatcher) Upsert(ctx context.Context, rec profile.Record) error {
	return m.upsertFn(ctx, rec)
}

func (m *mockMatcher) DeleteCandidate(ctx context.Context, id string) error {
	return m.deleteCFn(ctx, id)
}

func (m *mockMatcher) DeleteJob(ctx context.Context, id string) error {
	return m.deleteJFn(ctx, id)
}

func (m *mockMatcher) FindMatches(ctx context.Context, q match.Query) (match.Response, error) {
	return m.findFn(ctx, q)
}

func (m *mockMatcher) RecommendJobs(ctx context.Context, q match.Query) (match.Response, error) {
	return m.recommendFn(ctx, q)
}

type mockBatcher struct {
	upsertFn func(context.Context, entity.Class, []profile.Record) []dombatch.Result
	deleteFn func(context.Context, entity.Class, []string) []dombatch.Result
	maxBatch int
}

func (m *mockBatcher) Upsert(ctx context.Context, c entity.Class, recs []profile.Record) []dombatch.Result {
	return m.upsertFn(ctx, c, recs)
}

func (m *mockBatcher) Delete(ctx context.Context, c entity.Class, ids []string) []dombatch.Result {
	return m.deleteFn(ctx, c, ids)
}

func (m *mockBatcher) MaxBatchSize() int {
	if m.maxBatch == 0 {
		return 100
	}
	return m.maxBatch
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestRouter(m *mockMatcher, b *mockBatcher, h *mockHealth) http.Handler {
	if m == nil {
		m = &mockMatcher{}
	}
	if b == nil {
		b = &mockBatcher{}
	}
	if h == nil {
		h = &mockHealth{}
	}
	return NewRouter(NewServer(m, b, h, nil), RouterOptions{})
}

func newRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, http.NoBody)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(h, newRequest(method, target, body))
}
