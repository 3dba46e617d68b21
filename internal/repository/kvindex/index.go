// Package kvindex implements the vector index over Valkey or Redis:
// one HASH per entity, one FT index per class, KNN via FT.SEARCH.
package kvindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

// store is the consumer interface for the index (ISP).
type store interface {
	db.Pinger
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexVectorDim(ctx context.Context, name, field string) (dim int, exists bool, err error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW vector index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Index implements usecase/matching.Index.
type Index struct {
	store  store
	keys   Keyspace
	hnsw   HNSWConfig
	logger *zap.Logger

	mu    sync.RWMutex
	specs map[entity.Class]index.Spec
}

// New creates a KV-backed vector index.
func New(s store, keyPrefix string, hnsw HNSWConfig, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		store:  s,
		keys:   NewKeyspace(keyPrefix),
		hnsw:   hnsw,
		logger: logger,
		specs:  make(map[entity.Class]index.Spec),
	}
}

// EnsureIndex creates the FT index for class if missing. The first caller
// across all replicas claims the meta hash with its spec; every later call,
// and any existing FT index, must agree with that spec or the call fails.
func (ix *Index) EnsureIndex(ctx context.Context, class entity.Class, spec index.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	metaKey := ix.keys.metaKey(class)
	claimed, err := ix.store.HSetNX(ctx, metaKey, specFields(spec))
	if err != nil {
		return fmt.Errorf("%w: record spec: %w", domain.ErrIndexCreation, err)
	}
	recorded, found, err := ix.loadSpec(ctx, class)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexCreation, err)
	}
	if !found {
		return fmt.Errorf("%w: spec record %s missing after claim", domain.ErrIndexCreation, metaKey)
	}
	if recorded != spec {
		return index.ConflictError(class, recorded, spec)
	}

	if err := ix.ensureFT(ctx, class, spec); err != nil {
		if claimed {
			// Release the claim so the record never outlives a failed ensure.
			if delErr := ix.store.Del(ctx, metaKey); delErr != nil {
				ix.logger.Warn("Failed to release spec record", zap.String("key", metaKey), zap.Error(delErr))
			}
		}
		return err
	}

	ix.mu.Lock()
	ix.specs[class] = spec
	ix.mu.Unlock()
	return nil
}

// ensureFT creates the FT index or checks that the existing one was built
// with the same vector dimensionality.
func (ix *Index) ensureFT(ctx context.Context, class entity.Class, spec index.Spec) error {
	name := ix.keys.indexName(class)
	dim, exists, err := ix.store.IndexVectorDim(ctx, name, fieldVector)
	if err != nil {
		return fmt.Errorf("%w: probe %s: %w", domain.ErrIndexCreation, name, err)
	}

	if !exists {
		def, err := ix.definition(class, spec)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrIndexCreation, err)
		}
		err = ix.store.CreateIndex(ctx, def)
		switch {
		case err == nil:
			ix.logger.Info("Index created",
				zap.String("class", class.String()),
				zap.String("index", name),
				zap.Int("dimensions", spec.Dimensions),
			)
			return nil
		case errors.Is(err, db.ErrIndexExists):
			// Created concurrently; fall through to verify it.
			if dim, _, err = ix.store.IndexVectorDim(ctx, name, fieldVector); err != nil {
				return fmt.Errorf("%w: probe %s: %w", domain.ErrIndexCreation, name, err)
			}
		default:
			return fmt.Errorf("%w: create %s: %w", domain.ErrIndexCreation, name, err)
		}
	}

	if dim != 0 && dim != spec.Dimensions {
		return index.ConflictError(class, index.Spec{Dimensions: dim, Metric: spec.Metric}, spec)
	}
	return nil
}

func (ix *Index) definition(class entity.Class, spec index.Spec) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(ix.keys.indexName(class)).
		Prefix(ix.keys.entityPrefix(class)).
		Tag(fieldSkillTags, ",").
		Numeric(fieldExperience).
		VectorHNSW(fieldVector, spec.Dimensions, db.DistanceCosine, ix.hnsw.M, ix.hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return def, nil
}

func (ix *Index) loadSpec(ctx context.Context, class entity.Class) (index.Spec, bool, error) {
	m, err := ix.store.HGetAll(ctx, ix.keys.metaKey(class))
	if err != nil {
		return index.Spec{}, false, fmt.Errorf("read spec: %w", err)
	}
	return parseSpec(m)
}

// spec returns the ensured spec for class, consulting the store when another
// replica ensured it. Never-ensured classes fail with ErrIndexNotFound.
func (ix *Index) spec(ctx context.Context, class entity.Class) (index.Spec, error) {
	ix.mu.RLock()
	s, ok := ix.specs[class]
	ix.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, found, err := ix.loadSpec(ctx, class)
	if err != nil {
		return index.Spec{}, err
	}
	if !found {
		return index.Spec{}, fmt.Errorf("%s: %w", class, domain.ErrIndexNotFound)
	}

	ix.mu.Lock()
	ix.specs[class] = s
	ix.mu.Unlock()
	return s, nil
}

// Upsert replaces the entity hash atomically.
func (ix *Index) Upsert(ctx context.Context, class entity.Class, e entity.Entity) error {
	spec, err := ix.spec(ctx, class)
	if err != nil {
		return err
	}
	if err := domain.CheckDimensions(e.Vector(), spec.Dimensions); err != nil {
		return fmt.Errorf("upsert %s %q: %w", class, e.ID(), err)
	}
	if index.IsZero(e.Vector()) {
		return fmt.Errorf("upsert %s %q: zero-magnitude vector: %w", class, e.ID(), domain.ErrEmbeddingMissing)
	}

	fields, err := buildHashFields(e)
	if err != nil {
		return fmt.Errorf("upsert %s %q: %w", class, e.ID(), err)
	}
	key := ix.keys.entityKey(class, e.ID())
	if err := ix.store.HReplace(ctx, key, fields); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Get returns the entity stored under id.
func (ix *Index) Get(ctx context.Context, class entity.Class, id string) (entity.Entity, bool, error) {
	key := ix.keys.entityKey(class, id)
	m, err := ix.store.HGetAll(ctx, key)
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(m) == 0 {
		return entity.Entity{}, false, nil
	}
	e, err := parseEntity(id, m)
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	return e, true, nil
}

// Delete removes an entity. Deleting an absent id is a no-op.
func (ix *Index) Delete(ctx context.Context, class entity.Class, id string) error {
	key := ix.keys.entityKey(class, id)
	if err := ix.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Query runs a filtered KNN search and applies the similarity threshold.
func (ix *Index) Query(ctx context.Context, class entity.Class, q index.Query) ([]index.Hit, error) {
	spec, err := ix.spec(ctx, class)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimensions(q.Vector, spec.Dimensions); err != nil {
		return nil, fmt.Errorf("query %s: %w", class, err)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive: %w", domain.ErrInvalidArgument)
	}
	if index.IsZero(q.Vector) {
		return nil, fmt.Errorf("query %s: zero-magnitude vector: %w", class, domain.ErrEmbeddingMissing)
	}

	res, err := ix.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    ix.keys.indexName(class),
		Filter:       buildFilter(q.Filter),
		VectorField:  fieldVector,
		Vector:       q.Vector,
		K:            q.TopK,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("query %s: %w", class, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("query %s: %w", class, err)
	}

	prefix := ix.keys.entityPrefix(class)
	hits := make([]index.Hit, 0, len(res.Entries))
	for _, entry := range res.Entries {
		id := entry.Fields[fieldID]
		if id == "" {
			id = strings.TrimPrefix(entry.Key, prefix)
		}
		attrs, err := parseAttributes(entry.Fields)
		if err != nil {
			ix.logger.Warn("Skipping unreadable hit", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		hits = append(hits, index.Hit{
			ID:         id,
			Summary:    entry.Fields[fieldSummary],
			Attributes: attrs,
			Similarity: entry.Score,
		})
	}

	index.SortHits(hits)
	return index.Threshold(hits, q.TopK, q.MinSimilarity), nil
}

// Ping checks store connectivity.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.store.Ping(ctx)
}
