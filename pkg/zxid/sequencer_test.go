package zxid

import (
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

func TestSequencer_Assign(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := NewMockClock(ctrl)
	first := time.UnixMilli(1_000)
	// The clock going backwards must not affect the ordering of zxids.
	gomock.InOrder(
		clock.EXPECT().Now().Return(first),
		clock.EXPECT().Now().Return(first.Add(-time.Second)),
	)

	seq := NewSequencer(NewZXID(1, 10), clock)
	a, err := seq.Assign(zookeeper.OpCreate)
	require.NoError(t, err)
	b, err := seq.Assign(zookeeper.OpPing)
	require.NoError(t, err)

	assert.Equal(t, NewZXID(1, 11), a.Zxid)
	assert.Equal(t, int64(1_000), a.Time)
	assert.Equal(t, NewZXID(1, 12), b.Zxid)
	assert.Equal(t, int64(0), b.Time)
	assert.Equal(t, b.Zxid, seq.Last())
}

func TestSequencer_Exhausted(t *testing.T) {
	seq := NewSequencer(math.MaxInt64-1, nil)
	a, err := seq.Assign(zookeeper.OpCreate)
	require.NoError(t, err)
	assert.Equal(t, ZXID(math.MaxInt64), a.Zxid)

	_, err = seq.Assign(zookeeper.OpCreate)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, ZXID(math.MaxInt64), seq.Last())
}

func TestSequencer_Advance(t *testing.T) {
	seq := NewSequencer(Zero, nil)
	require.NoError(t, seq.Advance(5))
	assert.ErrorIs(t, seq.Advance(5), ErrOutOfOrder)
	assert.ErrorIs(t, seq.Advance(4), ErrOutOfOrder)

	a, err := seq.Assign(zookeeper.OpDelete)
	require.NoError(t, err)
	assert.Equal(t, ZXID(6), a.Zxid)
}

// TestSequencer_Concurrent verifies that zxids stay unique and strictly increasing per caller
// when many goroutines assign at the same time.
func TestSequencer_Concurrent(t *testing.T) {
	const callers = 16
	const perCaller = 500

	seq := NewSequencer(Zero, nil)
	var mu sync.Mutex
	var all []ZXID

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			var mine []ZXID
			for j := 0; j < perCaller; j++ {
				a, err := seq.Assign(zookeeper.OpSetData)
				if err != nil {
					return err
				}
				mine = append(mine, a.Zxid)
			}
			// Each caller observes its own assignments in increasing order.
			if !slices.IsSorted(mine) {
				t.Errorf("zxids out of order for one caller: %v", mine)
			}
			mu.Lock()
			all = append(all, mine...)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	slices.Sort(all)
	require.Len(t, all, callers*perCaller)
	for i := range all {
		assert.Equal(t, ZXID(i+1), all[i])
	}
}
