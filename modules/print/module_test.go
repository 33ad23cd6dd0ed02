package print

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/testutil"
)

func TestOnRunPrint(t *testing.T) {
	// Arrange
	out := &testutil.SafeBuffer{}
	logger, _ := testutil.NewLogger(t)
	sess := session.New(session.Options{Logger: logger, Out: out})

	// Act
	err := OnRunPrint(context.Background(), sess, &Input{
		Message: "Build summary",
		Values:  map[string]string{"version": "1.2.3", "configuration": "Release"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Build summary",
		`      configuration = "Release"`,
		`      version = "1.2.3"`,
	}, out.Lines())
}
