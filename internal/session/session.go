// Package session defines the execution context shared by every target and
// task of a single build run.
//
// A Session is created once per invocation of the tool, threaded through every
// step, and discarded when the run ends. It carries the run identity, the
// logger, the shared property bag, the record of how properties were
// resolved, and a line-atomic output sink for subprocess output.
package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/vk/buildgrid/internal/args"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/property"
)

// Session is the execution context of one build run.
type Session struct {
	RunID   string
	Logger  *slog.Logger
	Props   *property.Bag
	Args    *args.Resolution
	WorkDir string
	// FS is the filesystem used by file-oriented task kinds.
	FS afero.Fs

	outMu sync.Mutex
	out   io.Writer
}

// Options configures a new Session. Zero values fall back to sensible
// defaults: a fresh run ID, the default logger, an empty bag, the process
// working directory, the OS filesystem, and stdout.
type Options struct {
	RunID   string
	Logger  *slog.Logger
	Args    *args.Resolution
	WorkDir string
	FS      afero.Fs
	Out     io.Writer
}

// New creates a Session. Resolved argument values seed the property bag.
func New(opts Options) *Session {
	s := &Session{
		RunID:   opts.RunID,
		Logger:  opts.Logger,
		Args:    opts.Args,
		WorkDir: opts.WorkDir,
		FS:      opts.FS,
		out:     opts.Out,
	}
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.Logger = s.Logger.With("run_id", s.RunID)
	if s.Args == nil {
		s.Args = &args.Resolution{Values: map[string]any{}, Sources: map[string]args.SourceType{}}
	}
	if s.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			s.WorkDir = wd
		}
	}
	if s.FS == nil {
		s.FS = afero.NewOsFs()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	s.Props = property.NewBag(s.Args.Values)
	return s
}

// Context returns ctx carrying the session logger.
func (s *Session) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, s.Logger)
}

// WriteLine writes a single line to the session output. Concurrent callers
// never interleave within a line.
func (s *Session) WriteLine(line string) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := io.WriteString(s.out, line); err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		_, err := io.WriteString(s.out, "\n")
		return err
	}
	return nil
}

// LineWriter returns a writer that buffers partial writes and forwards whole
// lines to the session output, each prefixed with prefix.
func (s *Session) LineWriter(prefix string) *LineWriter {
	return &LineWriter{sess: s, prefix: prefix}
}

// Path resolves p against the session working directory. Absolute paths are
// returned unchanged.
func (s *Session) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.WorkDir, p)
}
