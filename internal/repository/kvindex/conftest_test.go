package kvindex

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// mockStore implements the consumer interface for tests.
// Hashes live in a map unless a function field overrides the call.
type mockStore struct {
	hashes  map[string]map[string]string
	indexes map[string]*db.IndexDefinition

	pingFn     func(ctx context.Context) error
	hreplaceFn func(ctx context.Context, key string, fields map[string]string) error
	searchFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createFn   func(ctx context.Context, def *db.IndexDefinition) error
	hsetnxFn   func(ctx context.Context, key string, fields map[string]string) (bool, error)
}

func newMockStore() *mockStore {
	return &mockStore{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	if m.hreplaceFn != nil {
		return m.hreplaceFn(ctx, key, fields)
	}
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.hashes[key] = cp
	return nil
}

func (m *mockStore) HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error) {
	if m.hsetnxFn != nil {
		return m.hsetnxFn(ctx, key, fields)
	}
	return m.claim(key, fields), nil
}

// claim is the in-memory HSETNX transaction.
func (m *mockStore) claim(key string, fields map[string]string) bool {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	claimed := true
	for k, v := range fields {
		if _, taken := h[k]; taken {
			claimed = false
			continue
		}
		h[k] = v
	}
	return claimed
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	h := m.hashes[key]
	cp := make(map[string]string, len(h))
	for k, v := range h {
		cp[k] = v
	}
	return cp, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createFn != nil {
		return m.createFn(ctx, def)
	}
	if _, ok := m.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *mockStore) IndexVectorDim(_ context.Context, name, field string) (int, bool, error) {
	def, ok := m.indexes[name]
	if !ok {
		return 0, false, nil
	}
	for _, f := range def.Fields {
		if f.Name == field {
			return f.VectorDim, true, nil
		}
	}
	return 0, true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestIndex(t *testing.T) (*Index, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "vecmatch", HNSWConfig{M: 16, EFConstruct: 200}, zap.NewNop()), ms
}

func intPtr(n int) *int { return &n }

func mustEntity(t *testing.T, id string, vec []float32, skills []string, exp *int) entity.Entity {
	t.Helper()
	e, err := entity.New(id, vec, id+" summary", entity.NewAttributes(skill.NewSet(skills...), exp))
	if err != nil {
		t.Fatalf("entity.New(%s): %v", id, err)
	}
	return e
}
