// Package testutil holds helpers shared by the package-level test suites:
// log capture, session construction and execution recording.
package testutil

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/vk/buildgrid/internal/session"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Lines returns the non-empty lines written so far.
func (b *SafeBuffer) Lines() []string {
	var out []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// NewLogger returns a debug-level text logger writing into a fresh buffer.
// With BUILDGRID_TEST_LOGS=true the captured output is dumped at cleanup.
func NewLogger(t *testing.T) (*slog.Logger, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("BUILDGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return logger, buf
}

// NewSession creates a session backed by a captured logger, an in-memory
// filesystem and a captured output buffer.
func NewSession(t *testing.T) (*session.Session, *SafeBuffer) {
	t.Helper()
	logger, buf := NewLogger(t)
	sess := session.New(session.Options{
		RunID:   "test-run",
		Logger:  logger,
		WorkDir: t.TempDir(),
		FS:      afero.NewMemMapFs(),
		Out:     &SafeBuffer{},
	})
	return sess, buf
}

// CountLines returns how many captured lines contain every given fragment.
func CountLines(buf *SafeBuffer, fragments ...string) int {
	n := 0
	for _, line := range buf.Lines() {
		match := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}
