package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/V4T54L/event-counter/internal/domain"
)

const (
	insertEventQuery    = `INSERT INTO events (id, external_id) VALUES ($1, $2)`
	insertKeyValueQuery = `INSERT INTO events_key_value (events_id, key, value) VALUES ($1, $2, $3)`

	countEventsQuery = `
		SELECT COUNT(DISTINCT e.id)
		FROM events e
		JOIN events_key_value ekv ON ekv.events_id = e.id
		WHERE e.id >= $1 AND e.id < $2 AND e.external_id = $3 AND ekv.key = $4
		GROUP BY e.external_id`
)

// EventRepository implements domain.EventRepository for PostgreSQL.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger.With("component", "postgres_event_repository")}
}

// Save writes the event header and all of its tags in one transaction.
func (r *EventRepository) Save(ctx context.Context, id uint64, event domain.Event) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // no-op after Commit

	if _, err := txn.ExecContext(ctx, insertEventQuery, int64(id), event.ExternalID); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if len(event.Tags) > 0 {
		stmt, err := txn.PrepareContext(ctx, insertKeyValueQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare tag insert: %w", err)
		}
		defer stmt.Close()

		for _, tag := range event.Tags {
			var value sql.NullString
			if tag.Value != nil {
				value = sql.NullString{String: *tag.Value, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, int64(id), tag.Key, value); err != nil {
				return fmt.Errorf("failed to insert tag %q: %w", tag.Key, err)
			}
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

// Count returns the number of distinct events matching filter. A query that
// matches nothing yields no row, which is reported as 0.
func (r *EventRepository) Count(ctx context.Context, filter domain.CountFilter) (uint64, error) {
	r.logger.Debug("counting events",
		"lower_id", filter.LowerID, "upper_id", filter.UpperID,
		"external_id", filter.ExternalID, "key", filter.Key)

	var count int64
	err := r.db.QueryRowContext(ctx, countEventsQuery,
		int64(filter.LowerID), int64(filter.UpperID), filter.ExternalID, filter.Key,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return uint64(count), nil
}
