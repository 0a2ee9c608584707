package domain

import "context"

// EventRepository persists events and answers count queries over them.
type EventRepository interface {
	// Save stores the event header and every tag under id as one atomic unit:
	// either all rows become visible or none do.
	Save(ctx context.Context, id uint64, event Event) error

	// Count returns the number of distinct events matching filter. It returns
	// 0, not an error, when nothing matches.
	Count(ctx context.Context, filter CountFilter) (uint64, error)
}

// CountCache stores counts for ranges that can no longer change.
type CountCache interface {
	// Get returns the cached count and whether it was present.
	Get(ctx context.Context, filter CountFilter) (uint64, bool, error)

	// Set stores count for filter.
	Set(ctx context.Context, filter CountFilter, count uint64) error
}
