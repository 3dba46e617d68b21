package batch

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
)

// EntityWriter stores and removes embedded entities.
type EntityWriter interface {
	Upsert(ctx context.Context, class entity.Class, e entity.Entity) error
	Delete(ctx context.Context, class entity.Class, id string) error
}
