package pgindex

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

func newTestIndex(t *testing.T) (*Index, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "sqlmock"), "vecmatch", HNSWConfig{}, nil), mock
}

func spec3(t *testing.T) index.Spec {
	t.Helper()
	s, err := index.NewSpec(3, "")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// withSpec marks class as ensured without touching the database.
func withSpec(ix *Index, class entity.Class, s index.Spec) {
	ix.mu.Lock()
	ix.specs[class] = s
	ix.mu.Unlock()
}

func intPtr(n int) *int { return &n }
