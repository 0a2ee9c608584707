package snowflake

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discordEpoch = 1420070400000

func newTestGenerator(t *testing.T, worker, process uint64, start uint16, opts ...Option) *Generator {
	t.Helper()
	opts = append([]Option{WithStartSequence(start)}, opts...)
	g, err := New(Config{WorkerID: worker, ProcessID: process, EpochStartMillis: discordEpoch}, opts...)
	require.NoError(t, err)
	return g
}

func TestNew_RejectsOutOfRangeIDs(t *testing.T) {
	_, err := New(Config{WorkerID: 32, EpochStartMillis: discordEpoch})
	assert.ErrorIs(t, err, ErrInvalidWorkerID)

	_, err = New(Config{ProcessID: 32, EpochStartMillis: discordEpoch})
	assert.ErrorIs(t, err, ErrInvalidProcessID)

	_, err = New(Config{WorkerID: MaxWorkerID, ProcessID: MaxProcessID, EpochStartMillis: discordEpoch})
	assert.NoError(t, err)
}

func TestCreateID_KnownValues(t *testing.T) {
	t.Run("start sequence 6", func(t *testing.T) {
		g := newTestGenerator(t, 1, 0, 6)
		id, err := g.CreateID(1462015105796)
		require.NoError(t, err)
		assert.Equal(t, uint64(175928847299117063), id)
	})

	t.Run("july 27th", func(t *testing.T) {
		g := newTestGenerator(t, 1, 0, 0)
		id, err := g.CreateID(1722006000000)
		require.NoError(t, err)
		assert.Equal(t, uint64(1266409694822531073), id)

		lower := g.FromTime(1722006000000)
		upper := g.FromTime(1722092399000)
		assert.Equal(t, uint64(1266409694822400000), lower)
		assert.Equal(t, uint64(1266772078493696000), upper)
		assert.Equal(t, uint64(86399000), (upper-lower)>>22)
	})
}

func TestCreateID_SequenceWraps(t *testing.T) {
	g := newTestGenerator(t, 1, 0, 4095)
	id, err := g.CreateID(1462015105796)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), Increment(id))
}

func TestCreateID_EmbedsFields(t *testing.T) {
	g := newTestGenerator(t, 17, 9, 41)
	id, err := g.CreateID(discordEpoch + 12345)
	require.NoError(t, err)

	parts := g.Decode(id)
	assert.Equal(t, Parts{
		TimeMillis:   discordEpoch + 12345,
		OffsetMillis: 12345,
		WorkerID:     17,
		ProcessID:    9,
		Increment:    42,
	}, parts)
}

func TestCreateID_RejectsOutOfEpochTimestamps(t *testing.T) {
	g := newTestGenerator(t, 1, 0, 0)

	_, err := g.CreateID(discordEpoch - 1)
	assert.ErrorIs(t, err, ErrBeforeEpoch)

	_, err = g.CreateID(discordEpoch + MaxOffsetMillis + 1)
	assert.ErrorIs(t, err, ErrTimestampOverflow)

	// Rejected calls leave the counter untouched.
	id, err := g.CreateID(discordEpoch + MaxOffsetMillis)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), Increment(id))
	assert.Equal(t, uint64(MaxOffsetMillis), g.Timestamp(id))
}

func TestCreateID_UniqueUnderConcurrency(t *testing.T) {
	g := newTestGenerator(t, 3, 4, 0)
	const ts = 1722006000000

	ids := make([]uint64, SequenceCapacity)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := g.CreateID(ts)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestCreateID_ExhaustionIsReported(t *testing.T) {
	var hits atomic.Int32
	g := newTestGenerator(t, 1, 1, 0, WithExhaustionHook(func() { hits.Add(1) }))
	const ts = 1722006000000

	for i := 0; i < SequenceCapacity; i++ {
		_, err := g.CreateID(ts)
		require.NoError(t, err)
	}

	_, err := g.CreateID(ts)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
	assert.Equal(t, int32(1), hits.Load())

	// The next millisecond has a fresh budget.
	_, err = g.CreateID(ts + 1)
	assert.NoError(t, err)
}

func TestCreateID_LateClockReadingKeepsBudget(t *testing.T) {
	var hits atomic.Int32
	g := newTestGenerator(t, 1, 0, 0, WithExhaustionHook(func() { hits.Add(1) }))
	const ts = 1722006000000

	seen := make(map[uint64]struct{}, SequenceCapacity+2)
	record := func(id uint64) {
		t.Helper()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}

	for i := 0; i < SequenceCapacity; i++ {
		id, err := g.CreateID(ts)
		require.NoError(t, err)
		record(id)
	}

	later, err := g.CreateID(ts + 1)
	require.NoError(t, err)
	record(later)

	// A caller that read the clock before the ts+1 caller got the lock.
	late, err := g.CreateID(ts)
	require.NoError(t, err)
	record(late)
	assert.Equal(t, uint64(ts+1), g.Time(late))
	assert.Greater(t, late, later)
	assert.Zero(t, hits.Load())
}

func TestCreateID_LateClockReadingSharesExhaustion(t *testing.T) {
	var hits atomic.Int32
	g := newTestGenerator(t, 1, 0, 0, WithExhaustionHook(func() { hits.Add(1) }))
	const ts = 1722006000000

	for i := 0; i < SequenceCapacity; i++ {
		_, err := g.CreateID(ts + 1)
		require.NoError(t, err)
	}

	_, err := g.CreateID(ts)
	assert.ErrorIs(t, err, ErrSequenceExhausted)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCreateID_MonotonicAcrossMilliseconds(t *testing.T) {
	// Start right below the wrap so the later id carries a smaller sequence.
	g := newTestGenerator(t, 31, 31, 4094)

	first, err := g.CreateID(1722006000000)
	require.NoError(t, err)
	second, err := g.CreateID(1722006000001)
	require.NoError(t, err)

	assert.Equal(t, uint64(4095), Increment(first))
	assert.Equal(t, uint64(0), Increment(second))
	assert.Less(t, first, second)
}

func TestFromTime_IDsOnTheBounds(t *testing.T) {
	// Worker, process and sequence all zero put an id exactly on a bound.
	g := newTestGenerator(t, 0, 0, SequenceCapacity-1)
	const from, to = 1722006000000, 1722006000010

	atLower, err := g.CreateID(from)
	require.NoError(t, err)
	atUpper, err := g.CreateID(to)
	require.NoError(t, err)

	assert.Equal(t, g.FromTime(from), atLower)
	assert.Equal(t, g.FromTime(to), atUpper-1)
}

func TestTimeAndTimestamp_RoundTrip(t *testing.T) {
	g := newTestGenerator(t, 1, 0, 0)
	for _, ts := range []uint64{discordEpoch, 1462015105796, 1722006000000, discordEpoch + MaxOffsetMillis} {
		id, err := g.CreateID(ts)
		require.NoError(t, err)
		assert.Equal(t, ts, g.Time(id))
		assert.Equal(t, g.Time(id)-g.Epoch(), g.Timestamp(id))
	}
}

func TestFromTime(t *testing.T) {
	g := newTestGenerator(t, 1, 0, 4095)

	tests := []struct {
		name string
		in   uint64
		want uint64
	}{
		{name: "zero clamps to epoch", in: 0, want: 0},
		{name: "epoch", in: discordEpoch, want: 0},
		{name: "one ms after epoch", in: discordEpoch + 1, want: 1 << 22},
		{name: "upper clamp boundary", in: 3903090455554, want: 9223372036850581504},
		{name: "max uint64 clamps", in: ^uint64(0), want: 9223372036850581504},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.FromTime(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, g.FromTime(tt.in))
			assert.Zero(t, got&(1<<22-1))
		})
	}
}

func TestFromTime_BoundsAreInclusiveExclusive(t *testing.T) {
	g := newTestGenerator(t, 31, 31, 4094)
	const from, to = 1722006000000, 1722006000010

	atLower, err := g.CreateID(from)
	require.NoError(t, err)
	atUpper, err := g.CreateID(to)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, atLower, g.FromTime(from))
	assert.Less(t, atLower, g.FromTime(to))
	assert.GreaterOrEqual(t, atUpper, g.FromTime(to))
}
