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
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/event-counter/internal/domain"
)

// TimeProjector maps wall-clock milliseconds into identifier space.
type TimeProjector interface {
	FromTime(timeMs uint64) uint64
}

// QueryRecorder observes count queries.
type QueryRecorder interface {
	QueryCompleted(status string)
	StoreQueried(elapsed time.Duration)
	CountCacheLookup(hit bool)
}

// QueryOption customizes a QueryEventsUseCase.
type QueryOption func(*QueryEventsUseCase)

// WithCountCache caches counts for ranges that ended at least settle ago.
// Events are never mutated or deleted, so such counts are final.
func WithCountCache(cache domain.CountCache, settle time.Duration) QueryOption {
	return func(uc *QueryEventsUseCase) {
		uc.cache = cache
		uc.settle = settle
	}
}

// WithQueryClock replaces the wall clock used to decide cacheability.
func WithQueryClock(now func() time.Time) QueryOption {
	return func(uc *QueryEventsUseCase) { uc.now = now }
}

// QueryEventsUseCase answers aggregate queries over stored events.
type QueryEventsUseCase struct {
	repo      domain.EventRepository
	projector TimeProjector
	metrics   QueryRecorder
	logger    *slog.Logger

	cache  domain.CountCache
	settle time.Duration
	now    func() time.Time
}

// NewQueryEventsUseCase creates a new QueryEventsUseCase. m may be nil.
func NewQueryEventsUseCase(repo domain.EventRepository, projector TimeProjector, m QueryRecorder, logger *slog.Logger, opts ...QueryOption) *QueryEventsUseCase {
	uc := &QueryEventsUseCase{
		repo:      repo,
		projector: projector,
		metrics:   m,
		logger:    logger.With("component", "query_events_usecase"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Translate converts the time range of q into identifier-space bounds.
func (uc *QueryEventsUseCase) Translate(q domain.EventsQuery) domain.CountFilter {
	return domain.CountFilter{
		ExternalID: q.ExternalID,
		Key:        q.Key,
		LowerID:    uc.projector.FromTime(q.From),
		UpperID:    uc.projector.FromTime(q.To),
	}
}

// Count returns the number of events matching q. Invalid queries fail with a
// *domain.ValidationError before any storage access.
func (uc *QueryEventsUseCase) Count(ctx context.Context, q domain.EventsQuery) (uint64, error) {
	ctx, span := otel.Tracer("query-events-usecase").Start(ctx, "Count",
		trace.WithAttributes(attribute.String("query.kind", string(q.Kind))))
	defer span.End()

	if err := q.Validate(); err != nil {
		uc.observe("invalid")
		return 0, err
	}

	filter := uc.Translate(q)
	span.SetAttributes(
		attribute.String("query.lower_id", strconv.FormatUint(filter.LowerID, 10)),
		attribute.String("query.upper_id", strconv.FormatUint(filter.UpperID, 10)),
	)
	if filter.Empty() {
		uc.observe("ok")
		return 0, nil
	}

	cacheable := uc.settled(q)
	if cacheable {
		if count, ok := uc.cachedCount(ctx, filter); ok {
			uc.observe("ok")
			return count, nil
		}
	}

	start := time.Now()
	count, err := uc.repo.Count(ctx, filter)
	if uc.metrics != nil {
		uc.metrics.StoreQueried(time.Since(start))
	}
	if err != nil {
		uc.observe("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "count events")
		return 0, fmt.Errorf("failed to count events for %q/%q: %w", q.ExternalID, q.Key, err)
	}

	if cacheable {
		if err := uc.cache.Set(ctx, filter, count); err != nil {
			uc.logger.Warn("failed to cache event count", "error", err)
		}
	}

	uc.observe("ok")
	return count, nil
}

// settled reports whether the range ended long enough ago that no new event
// can land in it.
func (uc *QueryEventsUseCase) settled(q domain.EventsQuery) bool {
	if uc.cache == nil {
		return false
	}
	nowMs := uint64(uc.now().UnixMilli())
	settleMs := uint64(uc.settle.Milliseconds())
	return nowMs >= settleMs && q.To <= nowMs-settleMs
}

func (uc *QueryEventsUseCase) cachedCount(ctx context.Context, filter domain.CountFilter) (uint64, bool) {
	count, ok, err := uc.cache.Get(ctx, filter)
	if err != nil {
		uc.logger.Warn("count cache unavailable, querying store", "error", err)
		return 0, false
	}
	if uc.metrics != nil {
		uc.metrics.CountCacheLookup(ok)
	}
	return count, ok
}

func (uc *QueryEventsUseCase) observe(status string) {
	if uc.metrics != nil {
		uc.metrics.QueryCompleted(status)
	}
}
