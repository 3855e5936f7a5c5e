package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentboard/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// setProject injects a project ID into the request context.
func setProject(r *http.Request, projectID string) *http.Request {
	return r.WithContext(middleware.WithProjectID(r.Context(), projectID))
}

func newRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.RemoteAddr = remoteAddr
	return req
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestProjectIDFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		got, ok := middleware.ProjectIDFromContext(middleware.WithProjectID(context.Background(), "proj-1"))
		assert.True(t, ok)
		assert.Equal(t, "proj-1", got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		_, ok := middleware.ProjectIDFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		_, ok := middleware.ProjectIDFromContext(middleware.WithProjectID(context.Background(), ""))
		assert.False(t, ok)
	})
}

// ===========================================================================
// 2. Project middleware
// ===========================================================================

func TestProject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		header string
		want   string
	}{
		{name: "header", path: "/x", header: "from-header", want: "from-header"},
		{name: "header_trimmed", path: "/x", header: "  p  ", want: "p"},
		{name: "route_param_not_read", path: "/events/from-path", want: ""},
		{name: "header_on_param_route", path: "/events/from-path", header: "from-header", want: "from-header"},
		{name: "none", path: "/x", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = middleware.ProjectIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			r := chi.NewRouter()
			r.Route("/", func(r chi.Router) {
				r.Use(middleware.Project())
				r.Get("/events/{projectID}", capture)
				r.Get("/x", capture)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set(middleware.ProjectHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ===========================================================================
// 3. RateLimit middleware
// ===========================================================================

func TestRateLimit_FirstRequestWithProject_Passes(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 1, 1)(okHandler)
	req := setProject(newRequest("10.0.0.1:1234"), "p")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	// First two requests consume the burst.
	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, setProject(newRequest("10.0.0.1:1234"), "p"))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	// Third request exceeds burst, even from another address.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, setProject(newRequest("10.0.0.2:1234"), "p"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":{"code":"RATE_LIMITED","message":"rate limit exceeded"}}`, rec.Body.String())
}

func TestRateLimit_IndependentPerProject(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	// Exhaust project A's burst.
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, setProject(newRequest("10.0.0.1:1234"), "a"))
	require.Equal(t, http.StatusOK, recA.Code)

	// Project A is now exhausted.
	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, setProject(newRequest("10.0.0.1:1234"), "a"))
	assert.Equal(t, http.StatusTooManyRequests, recA2.Code)

	// Project B should still be allowed.
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, setProject(newRequest("10.0.0.1:1234"), "b"))
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRateLimit_NoProject_FallsBackToAddress(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest("10.0.0.9:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, setProject(newRequest("10.0.0.1:1234"), "a"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Same address, different project: still limited.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, setProject(newRequest("10.0.0.1:1234"), "b"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
