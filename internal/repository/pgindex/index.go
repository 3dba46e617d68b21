// Package pgindex implements the vector index over Postgres with pgvector:
// one table per class, HNSW cosine index, similarity 1 - (embedding <=> q).
package pgindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// undefinedTable is the SQLSTATE of a missing relation.
const undefinedTable = "42P01"

// HNSWConfig holds HNSW vector index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Index implements usecase/matching.Index.
type Index struct {
	db     *sqlx.DB
	schema Schema
	hnsw   HNSWConfig
	logger *zap.Logger

	mu    sync.RWMutex
	specs map[entity.Class]index.Spec
}

// New creates a Postgres-backed vector index.
func New(db *sqlx.DB, prefix string, hnsw HNSWConfig, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hnsw.M <= 0 {
		hnsw.M = 16
	}
	if hnsw.EFConstruct <= 0 {
		hnsw.EFConstruct = 200
	}
	return &Index{
		db:     db,
		schema: NewSchema(prefix),
		hnsw:   hnsw,
		logger: logger,
		specs:  make(map[entity.Class]index.Spec),
	}
}

type row struct {
	ID         string          `db:"id"`
	Embedding  pgvector.Vector `db:"embedding"`
	Summary    string          `db:"summary"`
	Skills     pq.StringArray  `db:"skills"`
	Experience sql.NullInt64   `db:"experience"`
	Similarity float64         `db:"similarity"`
}

func (r *row) attributes() entity.Attributes {
	var exp *int
	if r.Experience.Valid {
		n := int(r.Experience.Int64)
		exp = &n
	}
	return entity.NewAttributes(skill.NewSet(r.Skills...), exp)
}

type specRow struct {
	Dimensions int    `db:"dimensions"`
	Metric     string `db:"metric"`
}

// EnsureIndex creates the class table under an advisory lock and records the spec.
func (ix *Index) EnsureIndex(ctx context.Context, class entity.Class, spec index.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	tx, err := ix.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrIndexCreation, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("%w: lock: %w", domain.ErrIndexCreation, err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("%w: pgvector extension: %w", domain.ErrIndexCreation, err)
	}
	if _, err := tx.ExecContext(ctx, ix.schema.metaDDL()); err != nil {
		return fmt.Errorf("%w: meta table: %w", domain.ErrIndexCreation, err)
	}

	var recorded specRow
	err = tx.GetContext(ctx, &recorded,
		`SELECT dimensions, metric FROM `+ix.schema.metaTable()+` WHERE class = $1`, class.String())
	switch {
	case err == nil:
		existing := index.Spec{Dimensions: recorded.Dimensions, Metric: index.Metric(recorded.Metric)}
		if existing != spec {
			return index.ConflictError(class, existing, spec)
		}
	case errors.Is(err, sql.ErrNoRows):
		for _, stmt := range ix.schema.classDDL(class, spec, ix.hnsw) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w: %s: %w", domain.ErrIndexCreation, ix.schema.table(class), err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+ix.schema.metaTable()+` (class, dimensions, metric) VALUES ($1, $2, $3)`,
			class.String(), spec.Dimensions, string(spec.Metric)); err != nil {
			return fmt.Errorf("%w: record spec: %w", domain.ErrIndexCreation, err)
		}
		ix.logger.Info("Index created",
			zap.String("class", class.String()),
			zap.String("table", ix.schema.table(class)),
			zap.Int("dimensions", spec.Dimensions),
		)
	default:
		return fmt.Errorf("%w: read spec: %w", domain.ErrIndexCreation, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrIndexCreation, err)
	}

	ix.mu.Lock()
	ix.specs[class] = spec
	ix.mu.Unlock()
	return nil
}

// spec returns the recorded spec for class. Never-ensured classes fail with ErrIndexNotFound.
func (ix *Index) spec(ctx context.Context, class entity.Class) (index.Spec, error) {
	ix.mu.RLock()
	s, ok := ix.specs[class]
	ix.mu.RUnlock()
	if ok {
		return s, nil
	}

	var recorded specRow
	err := ix.db.GetContext(ctx, &recorded,
		`SELECT dimensions, metric FROM `+ix.schema.metaTable()+` WHERE class = $1`, class.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return index.Spec{}, fmt.Errorf("%s: %w", class, domain.ErrIndexNotFound)
		}
		return index.Spec{}, fmt.Errorf("read spec: %w", err)
	}
	s = index.Spec{Dimensions: recorded.Dimensions, Metric: index.Metric(recorded.Metric)}

	ix.mu.Lock()
	ix.specs[class] = s
	ix.mu.Unlock()
	return s, nil
}

// Upsert inserts or replaces an entity row.
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

	attrs := e.Attributes()
	var exp sql.NullInt64
	if p := attrs.Experience(); p != nil {
		exp = sql.NullInt64{Int64: int64(*p), Valid: true}
	}

	query := `INSERT INTO ` + ix.schema.table(class) + ` (id, embedding, summary, skills, experience, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
	embedding = EXCLUDED.embedding,
	summary = EXCLUDED.summary,
	skills = EXCLUDED.skills,
	experience = EXCLUDED.experience,
	updated_at = EXCLUDED.updated_at`

	_, err = ix.db.ExecContext(ctx, query,
		e.ID(),
		pgvector.NewVector(e.Vector()),
		e.Summary(),
		pq.Array(attrs.Skills().Slice()),
		exp,
	)
	if err != nil {
		return fmt.Errorf("upsert %s %q: %w", class, e.ID(), err)
	}
	return nil
}

// Get returns the entity stored under id. A missing table reads as absent.
func (ix *Index) Get(ctx context.Context, class entity.Class, id string) (entity.Entity, bool, error) {
	var r row
	err := ix.db.GetContext(ctx, &r,
		`SELECT id, embedding, summary, skills, experience FROM `+ix.schema.table(class)+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return entity.Entity{}, false, nil
		}
		return entity.Entity{}, false, fmt.Errorf("get %s %q: %w", class, id, err)
	}
	return entity.Reconstruct(r.ID, r.Embedding.Slice(), r.Summary, r.attributes()), true, nil
}

// Delete removes an entity. Deleting an absent id is a no-op.
func (ix *Index) Delete(ctx context.Context, class entity.Class, id string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM `+ix.schema.table(class)+` WHERE id = $1`, id)
	if err != nil && !isUndefinedTable(err) {
		return fmt.Errorf("delete %s %q: %w", class, id, err)
	}
	return nil
}

// Query returns the top-K rows at or above MinSimilarity, nearest first.
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

	query, args := ix.buildQuery(class, q)
	var rows []row
	if err := ix.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("query %s: %w", class, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("query %s: %w", class, err)
	}

	hits := make([]index.Hit, len(rows))
	for i := range rows {
		hits[i] = index.Hit{
			ID:         rows[i].ID,
			Summary:    rows[i].Summary,
			Attributes: rows[i].attributes(),
			Similarity: rows[i].Similarity,
		}
	}
	index.SortHits(hits)
	return hits, nil
}

func (ix *Index) buildQuery(class entity.Class, q index.Query) (string, []any) {
	args := []any{pgvector.NewVector(q.Vector), q.MinSimilarity}
	where := []string{"1 - (embedding <=> $1) >= $2"}

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	f := q.Filter
	if !f.AnySkills().IsEmpty() {
		where = append(where, "skills && "+next(pq.Array(f.AnySkills().Slice())))
	}
	if p := f.MinExperience(); p != nil {
		where = append(where, "experience >= "+next(*p))
	}
	if p := f.MaxExperience(); p != nil {
		where = append(where, "experience <= "+next(*p))
	}
	limit := next(q.TopK)

	query := `SELECT id, summary, skills, experience, 1 - (embedding <=> $1) AS similarity
FROM ` + ix.schema.table(class) + `
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY embedding <=> $1
LIMIT ` + limit
	return query, args
}

// Ping checks database connectivity.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.db.PingContext(ctx)
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable
}
