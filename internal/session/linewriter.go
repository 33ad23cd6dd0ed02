package session

import (
	"bytes"
	"sync"
)

// LineWriter is an io.WriteCloser that emits only complete lines. Close
// flushes a trailing partial line.
type LineWriter struct {
	sess   *Session
	prefix string

	mu  sync.Mutex
	buf bytes.Buffer
}

// Write buffers p and forwards every complete line it contains.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		if err := w.sess.WriteLine(w.prefix + line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes any buffered partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	line := w.buf.String()
	w.buf.Reset()
	return w.sess.WriteLine(w.prefix + line)
}
