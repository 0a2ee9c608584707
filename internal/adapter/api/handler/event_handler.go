package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/V4T54L/event-counter/internal/adapter/metrics"
	"github.com/V4T54L/event-counter/internal/domain"
	"github.com/V4T54L/event-counter/internal/pkg/snowflake"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

// EventIngester stores one event and returns its identifier.
type EventIngester interface {
	Ingest(ctx context.Context, event domain.Event) (uint64, error)
}

// RateReporter receives the number of events created by each request.
type RateReporter interface {
	ReportEvents(count int)
}

type createdResponse struct {
	ID string `json:"id"`
}

type batchResponse struct {
	Created  int `json:"created"`
	Rejected int `json:"rejected"`
}

// EventHandler handles POST /event.
type EventHandler struct {
	ingester     EventIngester
	logger       *slog.Logger
	metrics      *metrics.Metrics
	rate         RateReporter
	maxEventSize int64
}

// NewEventHandler creates a new EventHandler. m and rate may be nil.
func NewEventHandler(ingester EventIngester, logger *slog.Logger, m *metrics.Metrics, rate RateReporter, maxEventSize int64) *EventHandler {
	return &EventHandler{
		ingester:     ingester,
		logger:       logger.With("component", "event_handler"),
		metrics:      m,
		rate:         rate,
		maxEventSize: maxEventSize,
	}
}

// ServeHTTP accepts either a single JSON event or an NDJSON batch.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	body := &countingReader{r: http.MaxBytesReader(w, r.Body, h.maxEventSize)}
	defer func() { h.observeBytes(body.n) }()

	switch mediaType {
	case contentTypeJSON:
		h.handleSingleJSON(r.Context(), w, body)
	case contentTypeNDJSON:
		h.handleNDJSON(r.Context(), w, body)
	default:
		h.observe("error_parse")
		respondWithError(w, h.logger, http.StatusUnsupportedMediaType, "Unsupported Content-Type")
	}
}

func (h *EventHandler) handleSingleJSON(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	var event domain.Event
	if err := json.NewDecoder(body).Decode(&event); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.observe("error_size")
			respondWithError(w, h.logger, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.observe("error_parse")
		respondWithError(w, h.logger, http.StatusBadRequest, "Malformed event body")
		return
	}

	id, err := h.ingester.Ingest(ctx, event)
	if err != nil {
		h.respondIngestError(w, err)
		return
	}

	h.observe("created")
	h.report(1)
	respondWithJSON(w, h.logger, http.StatusCreated, createdResponse{ID: strconv.FormatUint(id, 10)})
}

// handleNDJSON stores every line as its own event. A bad line is counted as
// rejected and does not affect its neighbours.
func (h *EventHandler) handleNDJSON(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), int(h.maxEventSize))

	var resp batchResponse
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event domain.Event
		if err := json.Unmarshal(line, &event); err != nil {
			h.logger.Warn("failed to unmarshal ndjson line", "error", err)
			h.observe("error_parse")
			resp.Rejected++
			continue
		}

		if _, err := h.ingester.Ingest(ctx, event); err != nil {
			h.logger.Warn("failed to ingest event from ndjson stream", "error", err, "external_id", event.ExternalID)
			h.observe(ingestErrorStatus(err))
			resp.Rejected++
			continue
		}
		h.observe("created")
		resp.Created++
	}
	h.report(resp.Created)

	if err := scanner.Err(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, bufio.ErrTooLong) {
			h.observe("error_size")
			respondWithError(w, h.logger, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.logger.Error("failed to read ndjson body", "error", err)
		respondWithError(w, h.logger, http.StatusBadRequest, "Malformed event body")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, resp)
}

func (h *EventHandler) respondIngestError(w http.ResponseWriter, err error) {
	h.observe(ingestErrorStatus(err))

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, h.logger, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, snowflake.ErrSequenceExhausted):
		w.Header().Set("Retry-After", "1")
		respondWithError(w, h.logger, http.StatusServiceUnavailable, "Too many events in this millisecond, retry")
	default:
		h.logger.Error("failed to ingest event", "error", err)
		respondWithError(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}

func ingestErrorStatus(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "error_invalid"
	case errors.Is(err, snowflake.ErrSequenceExhausted),
		errors.Is(err, snowflake.ErrBeforeEpoch),
		errors.Is(err, snowflake.ErrTimestampOverflow):
		return "error_id"
	default:
		return "error_store"
	}
}

func (h *EventHandler) observe(status string) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(status).Inc()
	}
}

func (h *EventHandler) observeBytes(n int64) {
	if h.metrics != nil && n > 0 {
		h.metrics.BytesTotal.Add(float64(n))
	}
}

func (h *EventHandler) report(count int) {
	if h.rate != nil && count > 0 {
		h.rate.ReportEvents(count)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
