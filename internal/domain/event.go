package domain

import "fmt"

// Tag is a single key/value pair attached to an event. Value is optional.
type Tag struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// Event is an inbound occurrence reported by a caller. ExternalID is opaque and
// not unique: many events may share one.
type Event struct {
	ExternalID string `json:"id"`
	Tags       []Tag  `json:"key_value"`
}

// Validate reports whether the event can be stored.
func (e Event) Validate() error {
	if e.ExternalID == "" {
		return NewValidationError("id must not be empty.")
	}
	for i, tag := range e.Tags {
		if tag.Key == "" {
			return NewValidationError(fmt.Sprintf("key_value[%d].key must not be empty.", i))
		}
	}
	return nil
}

// QueryKind selects the aggregate an EventsQuery computes.
type QueryKind string

// QueryKindCount counts matching events. It is the only supported kind.
const QueryKindCount QueryKind = "count"

// EventsQuery asks for an aggregate over events whose creation time falls in
// the half-open range [From, To), in milliseconds.
type EventsQuery struct {
	From       uint64
	To         uint64
	ExternalID string
	Key        string
	Kind       QueryKind
}

// Validate checks the range and kind. It never touches storage.
func (q EventsQuery) Validate() error {
	if q.From > q.To {
		return NewValidationError("From must be less than to.")
	}
	if q.Kind != QueryKindCount {
		return NewValidationError(fmt.Sprintf("unsupported query_type %q.", q.Kind))
	}
	return nil
}

// CountFilter is an EventsQuery translated into identifier space. An event
// matches when LowerID <= id < UpperID, its external id equals ExternalID and
// it carries at least one tag whose key equals Key.
type CountFilter struct {
	ExternalID string
	Key        string
	LowerID    uint64
	UpperID    uint64
}

// Empty reports whether no identifier can satisfy the bounds.
func (f CountFilter) Empty() bool {
	return f.LowerID >= f.UpperID
}

// Contains reports whether id falls inside the bounds.
func (f CountFilter) Contains(id uint64) bool {
	return id >= f.LowerID && id < f.UpperID
}

// ValidationError is a caller error. Its message is safe to return to clients.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }
