package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	before := NewLogger("before")
	assert.Equal(t, "before", before.Data["logger"])

	require.NoError(t, SetLevel("debug"))
	t.Cleanup(func() {
		_ = SetLevel("info")
	})
	after := NewLogger("after")

	assert.Equal(t, logrus.DebugLevel, before.Logger.GetLevel())
	assert.Equal(t, logrus.DebugLevel, after.Logger.GetLevel())
	assert.Error(t, SetLevel("loud"))
}
