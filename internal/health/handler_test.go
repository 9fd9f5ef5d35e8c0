package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"student-management-api/internal/health"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	ready   bool
	pingErr error
}

func (p *stubPinger) Ready() bool { return p.ready }

func (p *stubPinger) Ping(ctx context.Context) error { return p.pingErr }

func setup(p health.Pinger) chi.Router {
	router := chi.NewRouter()
	health.NewHandler("student-management-api", p).RegisterRoutes(router)
	return router
}

func TestHealth(t *testing.T) {
	t.Run("Health_Connected", func(t *testing.T) {
		router := setup(&stubPinger{ready: true})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response health.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "ok", response.Status)
		assert.Equal(t, "connected", response.Database)
		assert.Equal(t, "student-management-api", response.Service)
		assert.NotEmpty(t, response.Timestamp)
	})

	t.Run("Health_StartingWhileConnecting", func(t *testing.T) {
		router := setup(&stubPinger{ready: false})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		// Degraded, not broken: slow datastore startup must not fail the probe.
		assert.Equal(t, http.StatusOK, w.Code)

		var response health.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "starting", response.Status)
		assert.Equal(t, "connecting", response.Database)
	})

	t.Run("Health_PingFailure", func(t *testing.T) {
		router := setup(&stubPinger{ready: true, pingErr: errors.New("server selection timeout")})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response health.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "error", response.Status)
		assert.Equal(t, "disconnected", response.Database)
		assert.Contains(t, response.Error, "server selection timeout")
	})
}

func TestReady(t *testing.T) {
	t.Run("Ready_Connected", func(t *testing.T) {
		router := setup(&stubPinger{ready: true})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Ready_NotYetConnected", func(t *testing.T) {
		router := setup(&stubPinger{ready: false})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
