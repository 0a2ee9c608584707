package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/V4T54L/event-counter/internal/domain"
)

// IDGenerator issues identifiers for new events.
type IDGenerator interface {
	CreateID(timestampMs uint64) (uint64, error)
}

// Redactor scrubs sensitive tag values before an event is stored.
type Redactor interface {
	Redact(event domain.Event) (domain.Event, bool)
}

// IngestRecorder is told about every identifier the use case hands out.
type IngestRecorder interface {
	IDIssued()
}

// IngestOption customizes an IngestEventUseCase.
type IngestOption func(*IngestEventUseCase)

// WithIngestClock replaces the wall clock used to stamp new events.
func WithIngestClock(now func() time.Time) IngestOption {
	return func(uc *IngestEventUseCase) { uc.now = now }
}

// IngestEventUseCase handles the business logic for creating an event.
type IngestEventUseCase struct {
	repo     domain.EventRepository
	ids      IDGenerator
	redactor Redactor
	metrics  IngestRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestEventUseCase creates a new IngestEventUseCase. redactor and m may be nil.
func NewIngestEventUseCase(repo domain.EventRepository, ids IDGenerator, redactor Redactor, m IngestRecorder, logger *slog.Logger, opts ...IngestOption) *IngestEventUseCase {
	uc := &IngestEventUseCase{
		repo:     repo,
		ids:      ids,
		redactor: redactor,
		metrics:  m,
		logger:   logger.With("component", "ingest_event_usecase"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ingest validates the event, assigns it an identifier for the current
// millisecond and stores it atomically. It returns the assigned identifier.
//
// Identifiers are never handed back: if the write fails the id is simply
// skipped.
func (uc *IngestEventUseCase) Ingest(ctx context.Context, event domain.Event) (uint64, error) {
	ctx, span := otel.Tracer("ingest-event-usecase").Start(ctx, "Ingest")
	defer span.End()

	if err := event.Validate(); err != nil {
		return 0, err
	}

	if uc.redactor != nil {
		event, _ = uc.redactor.Redact(event)
	}

	id, err := uc.ids.CreateID(uint64(uc.now().UnixMilli()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create id")
		return 0, fmt.Errorf("failed to create event id: %w", err)
	}
	if uc.metrics != nil {
		uc.metrics.IDIssued()
	}
	span.SetAttributes(
		attribute.String("event.id", strconv.FormatUint(id, 10)),
		attribute.Int("event.tags", len(event.Tags)),
	)

	if err := uc.repo.Save(ctx, id, event); err != nil {
		uc.logger.Error("failed to store event", "error", err, "event_id", id, "external_id", event.ExternalID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store event")
		return 0, fmt.Errorf("failed to store event %d: %w", id, err)
	}

	uc.logger.Debug("stored event", "event_id", id, "external_id", event.ExternalID, "tags", len(event.Tags))
	return id, nil
}
