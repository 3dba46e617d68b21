package pgindex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

func TestNewSchema_Sanitizes(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"vecmatch", "vecmatch"},
		{"Prod:Match", "prod_match"},
		{"a-b.c", "a_b_c"},
		{"drop table;--", "droptable"},
		{"", "vecmatch"},
		{"1abc", "vecmatch"},
	}
	for _, tt := range tests {
		if got := NewSchema(tt.prefix).prefix; got != tt.want {
			t.Errorf("NewSchema(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestSchema_ClassDDL(t *testing.T) {
	stmts := NewSchema("vecmatch").classDDL(entity.Job, index.Spec{Dimensions: 1536, Metric: index.Cosine},
		HNSWConfig{M: 16, EFConstruct: 200})
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "vecmatch_job_entities") || !strings.Contains(stmts[0], "vector(1536)") {
		t.Errorf("unexpected table ddl: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "vector_cosine_ops") || !strings.Contains(stmts[1], "m = 16, ef_construction = 200") {
		t.Errorf("unexpected hnsw ddl: %s", stmts[1])
	}
	if !strings.Contains(stmts[2], "gin (skills)") {
		t.Errorf("unexpected gin ddl: %s", stmts[2])
	}
}

func TestEnsureIndex_Creates(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(advisoryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vecmatch_index_meta`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT dimensions, metric FROM vecmatch_index_meta`).
		WithArgs("job").
		WillReturnRows(sqlmock.NewRows([]string{"dimensions", "metric"}))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vecmatch_job_entities`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`USING hnsw`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`USING gin`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO vecmatch_index_meta`).
		WithArgs("job", 3, "cosine").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := ix.EnsureIndex(context.Background(), entity.Job, spec3(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.spec(context.Background(), entity.Job); err != nil {
		t.Fatalf("spec should be cached: %v", err)
	}
}

func TestEnsureIndex_ExistingSameSpec(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE EXTENSION`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vecmatch_index_meta`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT dimensions, metric FROM vecmatch_index_meta`).
		WillReturnRows(sqlmock.NewRows([]string{"dimensions", "metric"}).AddRow(3, "cosine"))
	mock.ExpectCommit()

	if err := ix.EnsureIndex(context.Background(), entity.Candidate, spec3(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureIndex_Conflict(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE EXTENSION`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vecmatch_index_meta`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT dimensions, metric FROM vecmatch_index_meta`).
		WillReturnRows(sqlmock.NewRows([]string{"dimensions", "metric"}).AddRow(5, "cosine"))
	mock.ExpectRollback()

	err := ix.EnsureIndex(context.Background(), entity.Job, spec3(t))
	if !errors.Is(err, domain.ErrIndexCreation) {
		t.Fatalf("expected ErrIndexCreation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureIndex_InvalidSpec(t *testing.T) {
	ix, _ := newTestIndex(t)
	err := ix.EnsureIndex(context.Background(), entity.Job, index.Spec{Dimensions: 0, Metric: index.Cosine})
	if !errors.Is(err, domain.ErrIndexCreation) {
		t.Fatalf("expected ErrIndexCreation, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	ix, mock := newTestIndex(t)
	withSpec(ix, entity.Candidate, spec3(t))

	e, err := entity.New("c1", []float32{1, 0, 0}, "Go engineer",
		entity.NewAttributes(skill.NewSet("Go", "SQL"), intPtr(5)))
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(`INSERT INTO vecmatch_candidate_entities`).
		WithArgs("c1", sqlmock.AnyArg(), "Go engineer", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ix.Upsert(context.Background(), entity.Candidate, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	ix, _ := newTestIndex(t)
	withSpec(ix, entity.Job, spec3(t))

	e := entity.Reconstruct("j1", []float32{1, 0}, "", entity.Attributes{})
	err := ix.Upsert(context.Background(), entity.Job, e)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsert_ZeroVector(t *testing.T) {
	ix, _ := newTestIndex(t)
	withSpec(ix, entity.Job, spec3(t))

	e := entity.Reconstruct("j1", []float32{0, 0, 0}, "", entity.Attributes{})
	err := ix.Upsert(context.Background(), entity.Job, e)
	if !errors.Is(err, domain.ErrEmbeddingMissing) {
		t.Fatalf("expected ErrEmbeddingMissing, got %v", err)
	}
}

func TestUpsert_IndexNotEnsured(t *testing.T) {
	ix, mock := newTestIndex(t)
	mock.ExpectQuery(`SELECT dimensions, metric FROM vecmatch_index_meta`).
		WillReturnError(&pq.Error{Code: undefinedTable})

	e := entity.Reconstruct("j1", []float32{1, 0, 0}, "", entity.Attributes{})
	err := ix.Upsert(context.Background(), entity.Job, e)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestGet(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectQuery(`SELECT id, embedding, summary, skills, experience FROM vecmatch_job_entities`).
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "embedding", "summary", "skills", "experience"}).
			AddRow("j1", "[0.5,0.5,0]", "Backend role", "{go,sql}", nil))

	e, found, err := ix.Get(context.Background(), entity.Job, "j1")
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if len(e.Vector()) != 3 || e.Vector()[0] != 0.5 {
		t.Errorf("unexpected vector %v", e.Vector())
	}
	if !e.Attributes().Skills().Contains("go") || e.Attributes().Skills().Len() != 2 {
		t.Errorf("unexpected skills %v", e.Attributes().Skills().Slice())
	}
	if e.Attributes().HasExperience() {
		t.Error("null experience should read as absent")
	}
}

func TestGet_Absent(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectQuery(`FROM vecmatch_job_entities`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "embedding", "summary", "skills", "experience"}))
	mock.ExpectQuery(`FROM vecmatch_candidate_entities`).
		WillReturnError(&pq.Error{Code: undefinedTable})

	if _, found, err := ix.Get(context.Background(), entity.Job, "nope"); err != nil || found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if _, found, err := ix.Get(context.Background(), entity.Candidate, "nope"); err != nil || found {
		t.Fatalf("missing table: found %v, err %v", found, err)
	}
}

func TestDelete(t *testing.T) {
	ix, mock := newTestIndex(t)

	mock.ExpectExec(`DELETE FROM vecmatch_job_entities`).WithArgs("j1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM vecmatch_job_entities`).WithArgs("j2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM vecmatch_candidate_entities`).WillReturnError(&pq.Error{Code: undefinedTable})

	for _, c := range []struct {
		class entity.Class
		id    string
	}{{entity.Job, "j1"}, {entity.Job, "j2"}, {entity.Candidate, "c1"}} {
		if err := ix.Delete(context.Background(), c.class, c.id); err != nil {
			t.Fatalf("Delete(%s, %s): %v", c.class, c.id, err)
		}
	}
}

func TestQuery(t *testing.T) {
	ix, mock := newTestIndex(t)
	withSpec(ix, entity.Candidate, spec3(t))

	filter, err := index.NewFilter(skill.NewSet("Go"), intPtr(2), nil)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`skills && \$3 AND experience >= \$4`).
		WithArgs(sqlmock.AnyArg(), 0.5, sqlmock.AnyArg(), 2, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary", "skills", "experience", "similarity"}).
			AddRow("c2", "", "{go}", 3, 0.9).
			AddRow("c1", "", "{go,sql}", 5, 0.9).
			AddRow("c3", "", "{go}", 2, 0.7))

	hits, err := ix.Query(context.Background(), entity.Candidate, index.Query{
		Vector:        []float32{1, 0, 0},
		TopK:          10,
		MinSimilarity: 0.5,
		Filter:        filter,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "c1" || hits[1].ID != "c2" || hits[2].ID != "c3" {
		t.Errorf("ties must break by id: %s %s %s", hits[0].ID, hits[1].ID, hits[2].ID)
	}
	if exp := hits[2].Attributes.Experience(); exp == nil || *exp != 2 {
		t.Errorf("unexpected experience %v", exp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQuery_Validation(t *testing.T) {
	ix, _ := newTestIndex(t)
	withSpec(ix, entity.Job, spec3(t))
	ctx := context.Background()

	if _, err := ix.Query(ctx, entity.Job, index.Query{Vector: []float32{1, 0}, TopK: 1}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := ix.Query(ctx, entity.Job, index.Query{Vector: []float32{1, 0, 0}, TopK: 0}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := ix.Query(ctx, entity.Job, index.Query{Vector: []float32{0, 0, 0}, TopK: 1}); !errors.Is(err, domain.ErrEmbeddingMissing) {
		t.Errorf("expected ErrEmbeddingMissing, got %v", err)
	}
}

func TestBuildQuery_NoFilter(t *testing.T) {
	ix, _ := newTestIndex(t)
	q, args := ix.buildQuery(entity.Job, index.Query{Vector: []float32{1}, TopK: 5, MinSimilarity: 0})
	if strings.Contains(q, "skills &&") || strings.Contains(q, "experience >=") {
		t.Errorf("unexpected filter clauses: %s", q)
	}
	if !strings.HasSuffix(q, "LIMIT $3") || len(args) != 3 {
		t.Errorf("unexpected limit binding: %s (%d args)", q, len(args))
	}
}

func TestBuildQuery_OrdersByDistanceOnly(t *testing.T) {
	ix, _ := newTestIndex(t)
	q, _ := ix.buildQuery(entity.Candidate, index.Query{Vector: []float32{1}, TopK: 5})
	// HNSW is only usable when the distance is the sole sort key.
	if !strings.Contains(q, "ORDER BY embedding <=> $1\nLIMIT") {
		t.Errorf("expected distance-only ordering: %s", q)
	}
}

func TestPing(t *testing.T) {
	ix, mock := newTestIndex(t)
	mock.ExpectPing()
	if err := ix.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
