package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/event-counter/internal/adapter/api/handler"
	"github.com/V4T54L/event-counter/internal/adapter/api/middleware"
)

// Handlers groups the public endpoints served by NewRouter.
type Handlers struct {
	Events *handler.EventHandler
	Query  *handler.QueryHandler
	Rate   *handler.RateBroker
}

// NewRouter creates and configures the public HTTP router. maxEventSize bounds
// decoded request bodies.
func NewRouter(logger *slog.Logger, maxEventSize int64, h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))

	r.With(middleware.Decompress(maxEventSize)).Post("/event", h.Events.ServeHTTP)
	r.Get("/event", h.Query.ServeHTTP)
	r.Get("/event/rate", h.Rate.ServeHTTP)

	r.Get("/health_check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
