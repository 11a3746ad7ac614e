package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/cache"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthDisabled  HealthStatus = "disabled"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

type HealthHandler struct {
	db    *sql.DB
	cache cache.Store
}

func NewHealthHandler(db *sql.DB, store cache.Store) *HealthHandler {
	return &HealthHandler{db: db, cache: store}
}

// pingHandler reports liveness only.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// healthCheckHandler reports readiness. Only the database decides the
// status code; a cache outage degrades the service without failing it.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	db := h.checkPostgres(ctx)
	resp := HealthResponse{
		Status:     db.Status,
		CheckedAt:  time.Now(),
		Components: map[string]CheckEntry{"postgres": db},
	}
	if h.cache != nil {
		c := h.checkCache(ctx)
		resp.Components["cache"] = c
		if resp.Status == HealthHealthy && c.Status == HealthDegraded {
			resp.Status = HealthDegraded
		}
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) checkPostgres(ctx context.Context) CheckEntry {
	start := time.Now()
	err := h.db.PingContext(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	stats := h.db.Stats()
	entry.Details = map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	}
	return entry
}

func (h *HealthHandler) checkCache(ctx context.Context) CheckEntry {
	entry := CheckEntry{Status: HealthHealthy, CheckedAt: time.Now()}
	if _, ok := h.cache.(*cache.NullStore); ok {
		entry.Status = HealthDisabled
		return entry
	}

	start := time.Now()
	err := h.cache.Ping(ctx)
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil || !h.cache.Available() {
		entry.Status = HealthDegraded
		if err != nil {
			entry.Message = err.Error()
		}
	}
	return entry
}
