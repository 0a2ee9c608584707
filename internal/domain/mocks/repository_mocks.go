package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/event-counter/internal/domain"
)

// SavedEvent records one call to MockEventRepository.Save.
type SavedEvent struct {
	ID    uint64
	Event domain.Event
}

// MockEventRepository is a mock implementation of domain.EventRepository for testing.
type MockEventRepository struct {
	mu          sync.Mutex
	Saved       []SavedEvent
	CountCalls  []domain.CountFilter
	CountResult uint64
	SaveErr     error
	CountErr    error
}

func (m *MockEventRepository) Save(ctx context.Context, id uint64, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, SavedEvent{ID: id, Event: event})
	return nil
}

func (m *MockEventRepository) Count(ctx context.Context, filter domain.CountFilter) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CountCalls = append(m.CountCalls, filter)
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return m.CountResult, nil
}

// MockCountCache is a mock implementation of domain.CountCache for testing.
type MockCountCache struct {
	mu      sync.Mutex
	Entries map[domain.CountFilter]uint64
	Gets    int
	Sets    int
	GetErr  error
	SetErr  error
}

func (m *MockCountCache) Get(ctx context.Context, filter domain.CountFilter) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return 0, false, m.GetErr
	}
	count, ok := m.Entries[filter]
	return count, ok, nil
}

func (m *MockCountCache) Set(ctx context.Context, filter domain.CountFilter, count uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Entries == nil {
		m.Entries = make(map[domain.CountFilter]uint64)
	}
	m.Entries[filter] = count
	return nil
}
