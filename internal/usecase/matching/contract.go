package matching

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

// Index is the vector index contract. Every backend in internal/repository implements it.
type Index interface {
	EnsureIndex(ctx context.Context, class entity.Class, spec index.Spec) error
	Upsert(ctx context.Context, class entity.Class, e entity.Entity) error
	Query(ctx context.Context, class entity.Class, q index.Query) ([]index.Hit, error)
	Get(ctx context.Context, class entity.Class, id string) (entity.Entity, bool, error)
	Delete(ctx context.Context, class entity.Class, id string) error
}
