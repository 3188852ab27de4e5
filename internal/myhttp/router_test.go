package myhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric/noop"
)

func newTestRouter(t *testing.T, middlewares ...Middleware) *myRouter {
	t.Helper()

	histogram, err := noop.NewMeterProvider().Meter("test").Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		t.Fatalf("failed to create histogram: %v", err)
	}
	return NewServerMux(logr.Discard(), histogram, middlewares...)
}

func TestHandleFuncWithMiddleware(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	mux := newTestRouter(t, tag("first"), tag("second"))
	mux.HandleFuncWithMiddleware("GET /api/v1/statistics", func(w http.ResponseWriter, r *http.Request) {
		if _, err := logr.FromContext(r.Context()); err != nil {
			t.Errorf("expected request logger in context: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/statistics", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if diff := cmp.Diff([]string{"first", "second"}, order); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestHandleFuncWithMiddlewareRecoversPanic(t *testing.T) {
	mux := newTestRouter(t)
	mux.HandleFuncWithMiddleware("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler.Error())
	})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantCode   int
		wantOrigin string
	}{
		{"no origin", []string{"*"}, http.MethodGet, "", http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"listed", []string{"http://localhost:3000"}, http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"unlisted", []string{"http://localhost:3000"}, http.MethodGet, "http://evil.example", http.StatusOK, ""},
		{"preflight", []string{"*"}, http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/v1/screenshot", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if diff := cmp.Diff(tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin")); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}
