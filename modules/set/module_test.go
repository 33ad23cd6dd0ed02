package set

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/testutil"
)

func TestOnRunSet(t *testing.T) {
	sess, _ := testutil.NewSession(t)
	sess.Props.Put("configuration", "Debug")

	err := OnRunSet(context.Background(), sess, &Input{Values: map[string]string{
		"configuration": "Release",
		"channel":       "beta",
	}})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"configuration": "Release", "channel": "beta"}, sess.Props.Snapshot())
}
