package zxid

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

var (
	// ErrExhausted is returned once the largest representable zxid has been handed out.
	ErrExhausted = errors.New("zxid: no zxids left")
	// ErrOutOfOrder is returned by Advance for a zxid that is not ahead of the last one.
	ErrOutOfOrder = errors.New("zxid: out of order")
)

// Clock is the wall clock used to timestamp transactions.
//
//go:generate mockgen -source=sequencer.go -destination=mock_clock_test.go -package=zxid
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock reads the local wall clock.
var SystemClock Clock = systemClock{}

// Assignment is the position and timestamp handed to one request.
type Assignment struct {
	Zxid ZXID
	// Time is in milliseconds since the epoch. It is informational only: the clock may move
	// backwards, the zxid never does.
	Time int64
}

// Sequencer is the single authority that issues zxids. Assign can be called from many goroutines,
// calls are serialized so every returned zxid is strictly greater than all the previous ones.
type Sequencer struct {
	mu    *sync.Mutex
	clock Clock
	last  ZXID
}

// NewSequencer returns a Sequencer whose first assignment is last+1.
func NewSequencer(last ZXID, clock Clock) *Sequencer {
	if clock == nil {
		clock = SystemClock
	}
	return &Sequencer{
		mu:    &sync.Mutex{},
		clock: clock,
		last:  last,
	}
}

// Assign hands out the next zxid for a request with the given opcode. Every opcode consumes a zxid.
func (s *Sequencer) Assign(op zookeeper.OpCode) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == math.MaxInt64 {
		return Assignment{}, fmt.Errorf("%w: assigning %s", ErrExhausted, op)
	}
	s.last++
	return Assignment{
		Zxid: s.last,
		Time: s.clock.Now().UnixMilli(),
	}, nil
}

// Advance moves the sequencer to z without going through Assign. It is used when applying
// transactions that were ordered somewhere else, such as a journal being replayed.
func (s *Sequencer) Advance(z ZXID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if z <= s.last {
		return fmt.Errorf("%w: %s is not after %s", ErrOutOfOrder, z, s.last)
	}
	s.last = z
	return nil
}

// Last returns the most recently assigned zxid.
func (s *Sequencer) Last() ZXID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
