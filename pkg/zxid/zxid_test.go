package zxid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZXID_Parts(t *testing.T) {
	tests := []struct {
		name    string
		epoch   int32
		counter uint32
	}{
		{
			name: "zero",
		},
		{
			name:    "small values",
			epoch:   3,
			counter: 17,
		},
		{
			name:    "counter uses the sign bit of its half",
			epoch:   1,
			counter: 0xFFFFFFFF,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			z := NewZXID(test.epoch, test.counter)
			assert.Equal(t, test.epoch, z.Epoch())
			assert.Equal(t, test.counter, z.Counter())
		})
	}
}

func TestZXID_NextEpoch(t *testing.T) {
	z := NewZXID(2, 500)
	next := z.NextEpoch()
	assert.Equal(t, int32(3), next.Epoch())
	assert.Equal(t, uint32(0), next.Counter())
	assert.Greater(t, next, z)
}

func TestZXID_CounterCarriesIntoEpoch(t *testing.T) {
	z := NewZXID(0, 0xFFFFFFFF) + 1
	assert.Equal(t, int32(1), z.Epoch())
	assert.Equal(t, uint32(0), z.Counter())
}
