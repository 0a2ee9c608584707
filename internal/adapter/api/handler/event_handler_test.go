package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/event-counter/internal/adapter/metrics"
	"github.com/V4T54L/event-counter/internal/domain"
	"github.com/V4T54L/event-counter/internal/pkg/snowflake"
)

// MockIngester is a mock implementation of EventIngester.
type MockIngester struct {
	mu         sync.Mutex
	IngestFunc func(ctx context.Context, event domain.Event) (uint64, error)
	Events     []domain.Event
}

func (m *MockIngester) Ingest(ctx context.Context, event domain.Event) (uint64, error) {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, event)
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	return 175928847299117063, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	counts []int
}

func (r *recordingReporter) ReportEvents(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, count)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		contentType    string
		body           string
		ingestErr      error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Valid Single JSON",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"id": "user-1", "key_value": [{"key": "click", "value": "buy"}, {"key": "seen", "value": null}]}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   `{"id":"175928847299117063"}`,
		},
		{
			name:           "JSON With Charset",
			method:         http.MethodPost,
			contentType:    "application/json; charset=utf-8",
			body:           `{"id": "user-1", "key_value": []}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   `{"id":"175928847299117063"}`,
		},
		{
			name:           "Missing External ID",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"key_value": []}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"id must not be empty."}`,
		},
		{
			name:           "Malformed JSON",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"id": "user-1",`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Malformed event body"}`,
		},
		{
			name:           "Unsupported Content Type",
			method:         http.MethodPost,
			contentType:    "text/plain",
			body:           "hello",
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "Invalid Method",
			method:         http.MethodPut,
			contentType:    "application/json",
			body:           `{"id": "user-1"}`,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "Payload Too Large",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           fmt.Sprintf(`{"id": "%s"}`, strings.Repeat("a", 2048)),
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:           "Sequence Exhausted",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"id": "user-1"}`,
			ingestErr:      fmt.Errorf("failed to create event id: %w", snowflake.ErrSequenceExhausted),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "Store Failure",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"id": "user-1"}`,
			ingestErr:      errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := &MockIngester{}
			if tt.ingestErr != nil {
				ingester.IngestFunc = func(context.Context, domain.Event) (uint64, error) { return 0, tt.ingestErr }
			}
			h := NewEventHandler(ingester, discardLogger(), nil, nil, 1024)

			req := httptest.NewRequest(tt.method, "/event", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestEventHandler_DecodesTags(t *testing.T) {
	ingester := &MockIngester{}
	h := NewEventHandler(ingester, discardLogger(), nil, nil, 1024)

	req := httptest.NewRequest(http.MethodPost, "/event",
		strings.NewReader(`{"id": "user-1", "key_value": [{"key": "click", "value": "buy"}, {"key": "seen", "value": null}]}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, ingester.Events, 1)
	tags := ingester.Events[0].Tags
	require.Len(t, tags, 2)
	assert.Equal(t, "click", tags[0].Key)
	require.NotNil(t, tags[0].Value)
	assert.Equal(t, "buy", *tags[0].Value)
	assert.Nil(t, tags[1].Value)
}

func TestEventHandler_NDJSON(t *testing.T) {
	ingester := &MockIngester{}
	reporter := &recordingReporter{}
	m := metrics.New(prometheus.NewRegistry())
	h := NewEventHandler(ingester, discardLogger(), m, reporter, 1024)

	body := strings.Join([]string{
		`{"id": "user-1", "key_value": [{"key": "click", "value": "a"}]}`,
		`not json`,
		``,
		`{"key_value": []}`,
		`{"id": "user-2"}`,
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-ndjson")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, batchResponse{Created: 2, Rejected: 2}, resp)
	assert.Equal(t, []int{2}, reporter.counts)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsTotal.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsTotal.WithLabelValues("error_parse")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsTotal.WithLabelValues("error_invalid")))
	assert.Equal(t, float64(len(body)), testutil.ToFloat64(m.BytesTotal))
}

func TestEventHandler_NDJSONStoreFailureIsPerLine(t *testing.T) {
	ingester := &MockIngester{IngestFunc: func(_ context.Context, e domain.Event) (uint64, error) {
		if e.ExternalID == "bad" {
			return 0, errors.New("disk full")
		}
		return 1, nil
	}}
	h := NewEventHandler(ingester, discardLogger(), nil, nil, 1024)

	req := httptest.NewRequest(http.MethodPost, "/event", strings.NewReader("{\"id\":\"ok\"}\n{\"id\":\"bad\"}\n{\"id\":\"ok\"}\n"))
	req.Header.Set("Content-Type", "application/x-ndjson")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"created":2,"rejected":1}`, rr.Body.String())
}
