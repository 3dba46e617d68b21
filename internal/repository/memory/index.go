// Package memory is an exact, in-process vector index.
//
// Entities are spread across shards by an xxhash of their id; each shard has
// its own lock, so upserts of different ids rarely contend. Each vector keeps
// its squared norm in float64, computed once on upsert.
package memory

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

const shardCount = 16

type item struct {
	entity entity.Entity
	sq     float64 // squared L2 norm of the entity vector
}

type shard struct {
	mu    sync.RWMutex
	items map[string]item
}

type partition struct {
	spec   index.Spec
	shards [shardCount]shard
}

func newPartition(spec index.Spec) *partition {
	p := &partition{spec: spec}
	for i := range p.shards {
		p.shards[i].items = make(map[string]item)
	}
	return p
}

func (p *partition) shard(id string) *shard {
	return &p.shards[xxhash.Sum64String(id)%shardCount]
}

// Index is a sharded flat index partitioned by entity class.
type Index struct {
	mu         sync.RWMutex
	partitions map[entity.Class]*partition
}

// New creates an empty index.
func New() *Index {
	return &Index{partitions: make(map[entity.Class]*partition)}
}

// EnsureIndex creates the partition for class, or checks that the existing one has the same shape.
func (ix *Index) EnsureIndex(_ context.Context, class entity.Class, spec index.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if !class.Valid() {
		return fmt.Errorf("%w: unknown class %q", domain.ErrIndexCreation, class)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if p, ok := ix.partitions[class]; ok {
		if p.spec != spec {
			return index.ConflictError(class, p.spec, spec)
		}
		return nil
	}
	ix.partitions[class] = newPartition(spec)
	return nil
}

func (ix *Index) partition(class entity.Class) (*partition, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.partitions[class]
	return p, ok
}

func (ix *Index) mustPartition(class entity.Class) (*partition, error) {
	p, ok := ix.partition(class)
	if !ok {
		return nil, fmt.Errorf("%s: %w", class, domain.ErrIndexNotFound)
	}
	return p, nil
}

// Upsert inserts or replaces an entity.
func (ix *Index) Upsert(ctx context.Context, class entity.Class, e entity.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := ix.mustPartition(class)
	if err != nil {
		return err
	}
	if err := domain.CheckDimensions(e.Vector(), p.spec.Dimensions); err != nil {
		return fmt.Errorf("upsert %s %q: %w", class, e.ID(), err)
	}
	sq, ok := squaredNorm(e.Vector())
	if !ok {
		return fmt.Errorf("upsert %s %q: zero-magnitude vector: %w", class, e.ID(), domain.ErrEmbeddingMissing)
	}

	s := p.shard(e.ID())
	s.mu.Lock()
	s.items[e.ID()] = item{entity: e, sq: sq}
	s.mu.Unlock()
	return nil
}

// Get returns the entity stored under id. A missing partition reads as absent.
func (ix *Index) Get(_ context.Context, class entity.Class, id string) (entity.Entity, bool, error) {
	p, ok := ix.partition(class)
	if !ok {
		return entity.Entity{}, false, nil
	}
	s := p.shard(id)
	s.mu.RLock()
	it, ok := s.items[id]
	s.mu.RUnlock()
	return it.entity, ok, nil
}

// Delete removes an entity. Deleting an absent id is a no-op.
func (ix *Index) Delete(_ context.Context, class entity.Class, id string) error {
	p, ok := ix.partition(class)
	if !ok {
		return nil
	}
	s := p.shard(id)
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Query scans the partition and returns the top-K hits at or above MinSimilarity.
func (ix *Index) Query(ctx context.Context, class entity.Class, q index.Query) ([]index.Hit, error) {
	p, err := ix.mustPartition(class)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimensions(q.Vector, p.spec.Dimensions); err != nil {
		return nil, fmt.Errorf("query %s: %w", class, err)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive: %w", domain.ErrInvalidArgument)
	}
	qsq, ok := squaredNorm(q.Vector)
	if !ok {
		return nil, fmt.Errorf("query %s: zero-magnitude vector: %w", class, domain.ErrEmbeddingMissing)
	}

	top := make(hitHeap, 0, q.TopK)
	for i := range p.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := &p.shards[i]
		s.mu.RLock()
		for id, it := range s.items {
			if !q.Filter.Matches(it.entity.Attributes()) {
				continue
			}
			sim := cosine(q.Vector, it.entity.Vector(), qsq, it.sq)
			if sim < q.MinSimilarity {
				continue
			}
			c := scored{id: id, similarity: sim, entity: it.entity}
			switch {
			case len(top) < q.TopK:
				heap.Push(&top, c)
			case c.better(top[0]):
				top[0] = c
				heap.Fix(&top, 0)
			}
		}
		s.mu.RUnlock()
	}

	hits := make([]index.Hit, len(top))
	for i, c := range top {
		hits[i] = index.Hit{
			ID:         c.id,
			Summary:    c.entity.Summary(),
			Attributes: c.entity.Attributes(),
			Similarity: c.similarity,
		}
	}
	index.SortHits(hits)
	return hits, nil
}

// Count returns the number of entities stored for class.
func (ix *Index) Count(_ context.Context, class entity.Class) (int, error) {
	p, ok := ix.partition(class)
	if !ok {
		return 0, nil
	}
	n := 0
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n, nil
}

// Ping always succeeds.
func (ix *Index) Ping(context.Context) error { return nil }

// Close is a no-op.
func (ix *Index) Close() error { return nil }

func squaredNorm(v []float32) (float64, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	return sum, true
}

// cosine is exactly 1 for a == b: the product under the root is then a
// square, which IEEE sqrt recovers exactly.
func cosine(a, b []float32, sqA, sqB float64) float64 {
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}
	return max(-1, min(1, d/math.Sqrt(sqA*sqB)))
}
