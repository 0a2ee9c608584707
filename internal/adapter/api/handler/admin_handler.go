package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/event-counter/internal/pkg/snowflake"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// IDDecoder splits an identifier into its fields.
type IDDecoder interface {
	Decode(id uint64) snowflake.Parts
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type decodedIDResponse struct {
	ID string `json:"id"`
	snowflake.Parts
	Time time.Time `json:"time"`
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	decoder IDDecoder
	checks  map[string]HealthCheck
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. checks maps a dependency name to
// its probe.
func NewAdminHandler(decoder IDDecoder, checks map[string]HealthCheck, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{decoder: decoder, checks: checks, logger: logger.With("component", "admin_handler")}
}

// HealthCheck reports 200 when every dependency answers and 503 otherwise.
// GET /health
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	respondWithJSON(w, h.logger, code, resp)
}

// DecodeID shows the fields packed into an identifier.
// GET /admin/ids/{id}
func (h *AdminHandler) DecodeID(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "id must be a decimal unsigned 64-bit integer")
		return
	}

	parts := h.decoder.Decode(id)
	respondWithJSON(w, h.logger, http.StatusOK, decodedIDResponse{
		ID:    raw,
		Parts: parts,
		Time:  time.UnixMilli(int64(parts.TimeMillis)).UTC(),
	})
}
