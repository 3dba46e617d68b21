package pgindex

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

// advisoryLockKey serializes schema provisioning across replicas.
const advisoryLockKey int64 = 0x7665636d61746368 // "vecmatch"

// Schema names every relation the index owns.
type Schema struct {
	prefix string
}

// NewSchema sanitizes prefix into a lowercase SQL identifier fragment.
// An empty result defaults to "vecmatch".
func NewSchema(prefix string) Schema {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ':' || r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	p := strings.Trim(b.String(), "_")
	if p == "" || (p[0] >= '0' && p[0] <= '9') {
		p = "vecmatch"
	}
	return Schema{prefix: p}
}

func (s Schema) metaTable() string { return s.prefix + "_index_meta" }

func (s Schema) table(class entity.Class) string {
	return s.prefix + "_" + class.String() + "_entities"
}

func (s Schema) metaDDL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	class      TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL,
	metric     TEXT NOT NULL
)`, s.metaTable())
}

// classDDL returns the statements that create the entity table and its indexes.
func (s Schema) classDDL(class entity.Class, spec index.Spec, hnsw HNSWConfig) []string {
	t := s.table(class)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	embedding  vector(%d) NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	skills     TEXT[] NOT NULL DEFAULT '{}',
	experience INTEGER,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, t, spec.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
	USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			t, t, hnsw.M, hnsw.EFConstruct),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_skills_idx ON %s USING gin (skills)`, t, t),
	}
}
