package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{name: "valid", event: Event{ExternalID: "a", Tags: []Tag{{Key: "k"}}}},
		{name: "no tags", event: Event{ExternalID: "a"}},
		{name: "missing id", event: Event{}, wantErr: "id must not be empty."},
		{name: "blank tag key", event: Event{ExternalID: "a", Tags: []Tag{{Key: "k"}, {Key: ""}}}, wantErr: "key_value[1].key must not be empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Msg)
		})
	}
}

func TestEventsQuery_Validate(t *testing.T) {
	assert.NoError(t, EventsQuery{From: 1, To: 1, Kind: QueryKindCount}.Validate())
	assert.EqualError(t, EventsQuery{From: 2, To: 1, Kind: QueryKindCount}.Validate(), "From must be less than to.")
	assert.Error(t, EventsQuery{From: 1, To: 2, Kind: "top"}.Validate())
}

func TestCountFilter(t *testing.T) {
	f := CountFilter{LowerID: 10, UpperID: 20}
	assert.False(t, f.Empty())
	assert.True(t, f.Contains(10))
	assert.True(t, f.Contains(19))
	assert.False(t, f.Contains(20))
	assert.False(t, f.Contains(9))

	assert.True(t, CountFilter{LowerID: 20, UpperID: 20}.Empty())
	assert.True(t, CountFilter{LowerID: 21, UpperID: 20}.Empty())
}

func TestCountFilter_ExactBounds(t *testing.T) {
	lower := uint64(1266409694822400000)
	upper := uint64(1266409694864343040)
	f := CountFilter{LowerID: lower, UpperID: upper}

	assert.True(t, f.Contains(lower))
	assert.False(t, f.Contains(upper))
	assert.True(t, f.Contains(upper-1))
	assert.False(t, f.Contains(lower-1))
}
