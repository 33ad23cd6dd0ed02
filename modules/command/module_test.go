package command

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/testutil"
)

func newSession(t *testing.T) (*session.Session, *testutil.SafeBuffer) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX shell")
	}
	logger, _ := testutil.NewLogger(t)
	out := &testutil.SafeBuffer{}
	return session.New(session.Options{Logger: logger, WorkDir: t.TempDir(), Out: out}), out
}

func TestOnRunExec_StreamsAndCapturesOutput(t *testing.T) {
	// Arrange
	sess, out := newSession(t)

	// Act
	err := OnRunExec(context.Background(), sess, &Input{
		Command:        `sh -c 'echo "$GREETING world"; echo second'`,
		Env:            map[string]string{"GREETING": "hello"},
		OutputProperty: "greeting",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"  | hello world", "  | second"}, out.Lines())
	v, ok := sess.Props.Lookup("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello world\nsecond", v)
}

func TestOnRunExec_Quiet(t *testing.T) {
	sess, out := newSession(t)

	err := OnRunExec(context.Background(), sess, &Input{Command: "echo", Args: []string{"hidden"}, Quiet: true})

	require.NoError(t, err)
	assert.Empty(t, out.Lines())
}

func TestOnRunExec_Failures(t *testing.T) {
	testCases := []struct {
		name    string
		command string
		wantErr string
	}{
		{name: "non-zero exit", command: "sh -c 'exit 3'", wantErr: "exited with code 3"},
		{name: "unknown program", command: "buildgrid-no-such-program", wantErr: "failed to run command"},
		{name: "unbalanced quotes", command: `echo "open`, wantErr: "failed to parse command"},
		{name: "empty", command: "   ", wantErr: "command must not be empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sess, _ := newSession(t)

			err := OnRunExec(context.Background(), sess, &Input{Command: tc.command})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, got)
}
