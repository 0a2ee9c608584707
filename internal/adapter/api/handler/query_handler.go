package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/event-counter/internal/domain"
)

// EventCounter answers count queries.
type EventCounter interface {
	Count(ctx context.Context, q domain.EventsQuery) (uint64, error)
}

type countResponse struct {
	Count uint64 `json:"count"`
}

// QueryHandler handles GET /event.
type QueryHandler struct {
	counter EventCounter
	logger  *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(counter EventCounter, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{counter: counter, logger: logger.With("component", "query_handler")}
}

// ServeHTTP handles GET /event?from=&to=&id=&key=&query_type=count.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, err := parseEventsQuery(r)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.counter.Count(r.Context(), q)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			respondWithError(w, h.logger, http.StatusBadRequest, verr.Msg)
			return
		}
		h.logger.Error("failed to count events", "error", err)
		respondWithError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, countResponse{Count: count})
}

// parseEventsQuery reads the query string. from, to, id and key are required;
// query_type defaults to count.
func parseEventsQuery(r *http.Request) (domain.EventsQuery, error) {
	values := r.URL.Query()

	from, err := parseMillis(values.Get("from"), "from")
	if err != nil {
		return domain.EventsQuery{}, err
	}
	to, err := parseMillis(values.Get("to"), "to")
	if err != nil {
		return domain.EventsQuery{}, err
	}

	q := domain.EventsQuery{
		From:       from,
		To:         to,
		ExternalID: values.Get("id"),
		Key:        values.Get("key"),
		Kind:       domain.QueryKind(values.Get("query_type")),
	}
	if q.ExternalID == "" {
		return domain.EventsQuery{}, errors.New("missing query parameter id")
	}
	if q.Key == "" {
		return domain.EventsQuery{}, errors.New("missing query parameter key")
	}
	if q.Kind == "" {
		q.Kind = domain.QueryKindCount
	}
	return q, nil
}

func parseMillis(raw, name string) (uint64, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing query parameter %s", name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid query parameter %s: must be milliseconds since the Unix epoch", name)
	}
	return v, nil
}
