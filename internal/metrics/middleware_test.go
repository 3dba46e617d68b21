package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/jobs/{id}/matches", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	for _, id := range []string{"j1", "j2", "j3"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id+"/matches", http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/jobs/{id}/matches", "200"))
	if got < 3 {
		t.Errorf("expected >= 3 requests under the route pattern, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Put("/v1/candidates/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "bad":
			w.WriteHeader(http.StatusBadRequest)
		case "gone":
			w.WriteHeader(http.StatusNotFound)
			w.WriteHeader(http.StatusInternalServerError) // ignored, first status wins
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	tests := []struct {
		id     string
		status string
	}{
		{"ok", "204"},
		{"bad", "400"},
		{"gone", "404"},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/candidates/"+tc.id, http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PUT", "/v1/candidates/{id}", tc.status))
			if val < 1 {
				t.Errorf("expected a request with status %s, got %f", tc.status, val)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody))

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "418")); val < 1 {
		t.Errorf("expected unknown path label, got %f", val)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/v1/jobs/{id}", "/v1/jobs/{id}"},
		{"/health", "/health"},
	}
	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestRegister_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	RegisterEncoderMetrics()
	RegisterEncoderMetrics()
	RegisterMatchingMetrics()
	RegisterMatchingMetrics()
}

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("x")) != "error" {
		t.Error("unexpected status labels")
	}
}
