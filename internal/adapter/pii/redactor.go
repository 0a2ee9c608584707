package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/event-counter/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces the values of sensitive tags before they are stored.
// Keys are matched case-insensitively; the key itself is kept so the tag
// still counts toward queries.
type Redactor struct {
	keysToRedact map[string]struct{}
	logger       *slog.Logger
}

// NewRedactor creates a Redactor for the given tag keys. Blank keys are ignored.
func NewRedactor(keys []string, logger *slog.Logger) *Redactor {
	keySet := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" {
			keySet[key] = struct{}{}
		}
	}
	return &Redactor{
		keysToRedact: keySet,
		logger:       logger,
	}
}

// Redact returns event with sensitive tag values replaced. The input's tag
// slice is never modified. The boolean reports whether anything changed.
func (r *Redactor) Redact(event domain.Event) (domain.Event, bool) {
	if len(r.keysToRedact) == 0 || len(event.Tags) == 0 {
		return event, false
	}

	var tags []domain.Tag
	for i, tag := range event.Tags {
		if tag.Value == nil {
			continue
		}
		if _, ok := r.keysToRedact[strings.ToLower(tag.Key)]; !ok {
			continue
		}
		if tags == nil {
			tags = make([]domain.Tag, len(event.Tags))
			copy(tags, event.Tags)
		}
		placeholder := RedactedPlaceholder
		tags[i].Value = &placeholder
	}

	if tags == nil {
		return event, false
	}
	r.logger.Debug("redacted sensitive tag values", "external_id", event.ExternalID)
	event.Tags = tags
	return event, true
}
