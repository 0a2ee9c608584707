// Package snowflake issues 64-bit, time-ordered event identifiers.
//
// An identifier is laid out from most to least significant bit as:
//
//	[ ms since epoch : 41 ][ worker : 5 ][ process : 5 ][ sequence : 12 ]
//
// Identifiers created in a later millisecond are always numerically larger
// than identifiers created in an earlier one, whatever their sequence.
package snowflake

import (
	"errors"
	"fmt"
	"sync"
)

const (
	timestampBits = 41
	workerBits    = 5
	processBits   = 5
	sequenceBits  = 12

	processShift   = sequenceBits
	workerShift    = sequenceBits + processBits
	timestampShift = sequenceBits + processBits + workerBits // 22

	sequenceMask  uint64 = 1<<sequenceBits - 1
	processMask   uint64 = 1<<processBits - 1
	workerMask    uint64 = 1<<workerBits - 1
	timestampMask uint64 = 1<<timestampBits - 1

	// MaxWorkerID and MaxProcessID are the largest values that fit their fields.
	MaxWorkerID  = workerMask
	MaxProcessID = processMask

	// SequenceCapacity is the number of distinct ids one generator can issue
	// within a single millisecond.
	SequenceCapacity = 1 << sequenceBits

	// MaxOffsetMillis is the largest relative timestamp the layout can hold.
	MaxOffsetMillis = timestampMask
)

var (
	ErrInvalidWorkerID   = fmt.Errorf("worker id must be between 0 and %d", MaxWorkerID)
	ErrInvalidProcessID  = fmt.Errorf("process id must be between 0 and %d", MaxProcessID)
	ErrBeforeEpoch       = errors.New("timestamp is earlier than the generator epoch")
	ErrTimestampOverflow = errors.New("timestamp does not fit in 41 bits relative to the generator epoch")
	ErrSequenceExhausted = fmt.Errorf("more than %d ids requested within one millisecond", SequenceCapacity)
)

// Config is the machine-local identity of a generator. It is fixed for the
// lifetime of the generator.
type Config struct {
	WorkerID         uint64
	ProcessID        uint64
	EpochStartMillis uint64
}

// Option customizes a Generator at construction time.
type Option func(*Generator)

// WithStartSequence sets the counter value the first CreateID increments from.
func WithStartSequence(seq uint16) Option {
	return func(g *Generator) {
		g.sequence = uint64(seq) & sequenceMask
	}
}

// WithExhaustionHook registers fn to be called, outside the generator lock,
// every time CreateID refuses an id because the millisecond is full.
func WithExhaustionHook(fn func()) Option {
	return func(g *Generator) {
		g.onExhausted = fn
	}
}

// Generator creates identifiers and projects wall-clock time into identifier
// space. It is safe for concurrent use.
type Generator struct {
	workerID  uint64
	processID uint64
	epoch     uint64

	onExhausted func()

	mu       sync.Mutex
	sequence uint64
	// lastOffset and issued count the ids handed out in the most recent
	// millisecond seen by CreateID.
	lastOffset uint64
	issued     uint64
}

// New validates cfg and returns a Generator for it.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if cfg.WorkerID > MaxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	if cfg.ProcessID > MaxProcessID {
		return nil, ErrInvalidProcessID
	}

	g := &Generator{
		workerID:  cfg.WorkerID,
		processID: cfg.ProcessID,
		epoch:     cfg.EpochStartMillis,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Epoch returns the configured epoch in milliseconds.
func (g *Generator) Epoch() uint64 { return g.epoch }

// CreateID returns a new identifier for timestampMs, an absolute time in
// milliseconds. The shared sequence counter is advanced exactly once per
// successful call and wraps modulo SequenceCapacity. A timestamp older than
// one already seen is encoded as that later millisecond.
func (g *Generator) CreateID(timestampMs uint64) (uint64, error) {
	if timestampMs < g.epoch {
		return 0, ErrBeforeEpoch
	}
	offset := timestampMs - g.epoch
	if offset > MaxOffsetMillis {
		return 0, ErrTimestampOverflow
	}

	offset, seq, ok := g.nextSequence(offset)
	if !ok {
		if g.onExhausted != nil {
			g.onExhausted()
		}
		return 0, ErrSequenceExhausted
	}

	return compose(offset, g.workerID, g.processID, seq), nil
}

// nextSequence advances the counter for offset. A caller whose clock reading
// is older than the latest millisecond seen is moved forward to it, so every
// millisecond has exactly one budget. It returns the offset to encode.
func (g *Generator) nextSequence(offset uint64) (uint64, uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.issued > 0 && offset < g.lastOffset {
		offset = g.lastOffset
	}

	if offset == g.lastOffset && g.issued > 0 {
		if g.issued >= SequenceCapacity {
			return 0, 0, false
		}
		g.issued++
	} else {
		g.lastOffset = offset
		g.issued = 1
	}

	g.sequence = (g.sequence + 1) & sequenceMask
	return offset, g.sequence, true
}

// Time returns the absolute creation time, in milliseconds, encoded in id.
func (g *Generator) Time(id uint64) uint64 {
	return id>>timestampShift + g.epoch
}

// Timestamp returns the creation time of id relative to the epoch.
func (g *Generator) Timestamp(id uint64) uint64 {
	return id >> timestampShift
}

// FromTime projects an absolute millisecond timestamp into identifier space.
// The result is a range bound, not an identifier: its low 22 bits are zero.
// Times outside the representable window are clamped to its edges.
func (g *Generator) FromTime(timeMs uint64) uint64 {
	var offset uint64
	switch {
	case timeMs <= g.epoch:
		offset = 0
	case timeMs-g.epoch > MaxOffsetMillis:
		offset = MaxOffsetMillis
	default:
		offset = timeMs - g.epoch
	}
	return (offset & timestampMask) << timestampShift
}

// Parts is the decoded form of an identifier.
type Parts struct {
	TimeMillis   uint64 `json:"time_ms"`
	OffsetMillis uint64 `json:"offset_ms"`
	WorkerID     uint64 `json:"worker_id"`
	ProcessID    uint64 `json:"process_id"`
	Increment    uint64 `json:"increment"`
}

// Decode splits id into its fields.
func (g *Generator) Decode(id uint64) Parts {
	return Parts{
		TimeMillis:   g.Time(id),
		OffsetMillis: g.Timestamp(id),
		WorkerID:     Worker(id),
		ProcessID:    Process(id),
		Increment:    Increment(id),
	}
}

// Increment returns the sequence value embedded in id.
func Increment(id uint64) uint64 {
	return id & sequenceMask
}

// Worker returns the worker id embedded in id.
func Worker(id uint64) uint64 {
	return (id >> workerShift) & workerMask
}

// Process returns the process id embedded in id.
func Process(id uint64) uint64 {
	return (id >> processShift) & processMask
}

func compose(offset, worker, process, seq uint64) uint64 {
	return (offset&timestampMask)<<timestampShift |
		(worker&workerMask)<<workerShift |
		(process&processMask)<<processShift |
		seq&sequenceMask
}
