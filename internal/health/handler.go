package health

import (
	"context"
	"net/http"
	"time"

	"student-management-api/internal/httputil"

	"github.com/go-chi/chi/v5"
)

// Pinger is the slice of the persistence gateway the health check needs.
// Ping must round-trip to the datastore, not consult a cached flag.
type Pinger interface {
	Ready() bool
	Ping(ctx context.Context) error
}

type Handler struct {
	service string
	db      Pinger
}

func NewHandler(service string, db Pinger) *Handler {
	return &Handler{
		service: service,
		db:      db,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	// Slow datastore startup is expected in orchestrated environments, so a
	// not-yet-connected gateway is degraded, not broken.
	if !h.db.Ready() {
		httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{
			Status:    "starting",
			Service:   h.service,
			Database:  "connecting",
			Timestamp: now,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		httputil.RespondWithJSON(w, http.StatusInternalServerError, HealthResponse{
			Status:    "error",
			Service:   h.service,
			Database:  "disconnected",
			Timestamp: now,
			Error:     err.Error(),
		})
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   h.service,
		Database:  "connected",
		Timestamp: now,
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.db.Ready() {
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
