// Package memory keeps events in process memory. Contents are lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/V4T54L/event-counter/internal/domain"
)

// EventRepository implements domain.EventRepository with a mutex-guarded map.
type EventRepository struct {
	mu     sync.RWMutex
	events map[uint64]domain.Event
}

// NewEventRepository creates an empty in-memory repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[uint64]domain.Event)}
}

// Save stores a copy of event under id. Ids are primary keys: saving the same
// id twice fails and leaves the first event in place.
func (r *EventRepository) Save(ctx context.Context, id uint64, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tags := make([]domain.Tag, len(event.Tags))
	for i, tag := range event.Tags {
		tags[i] = domain.Tag{Key: tag.Key}
		if tag.Value != nil {
			v := *tag.Value
			tags[i].Value = &v
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.events[id]; exists {
		return fmt.Errorf("event %d already exists", id)
	}
	r.events[id] = domain.Event{ExternalID: event.ExternalID, Tags: tags}
	return nil
}

// Count returns the number of stored events matching filter.
func (r *EventRepository) Count(ctx context.Context, filter domain.CountFilter) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var count uint64
	for id, event := range r.events {
		if !filter.Contains(id) || event.ExternalID != filter.ExternalID {
			continue
		}
		if hasKey(event.Tags, filter.Key) {
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored events.
func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func hasKey(tags []domain.Tag, key string) bool {
	for _, tag := range tags {
		if tag.Key == key {
			return true
		}
	}
	return false
}
