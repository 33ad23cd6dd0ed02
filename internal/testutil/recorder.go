package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/buildgrid/internal/session"
)

// ExecutionRecord holds the start and end times of one recorded execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Recorder produces work functions that record when they ran, in which order
// they finished, and how many times each was called.
type Recorder struct {
	mu      sync.Mutex
	records map[string]*ExecutionRecord
	calls   map[string]int
	order   []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		records: make(map[string]*ExecutionRecord),
		calls:   make(map[string]int),
	}
}

// Sleep returns a work function that sleeps for d and records the execution
// under id. It returns early with the context error on cancellation.
func (r *Recorder) Sleep(id string, d time.Duration) func(context.Context, *session.Session) error {
	return func(ctx context.Context, _ *session.Session) error {
		start := time.Now()
		r.mu.Lock()
		r.calls[id]++
		r.mu.Unlock()

		var err error
		select {
		case <-time.After(d):
		case <-ctx.Done():
			err = ctx.Err()
		}

		r.mu.Lock()
		r.records[id] = &ExecutionRecord{Start: start, End: time.Now()}
		r.order = append(r.order, id)
		r.mu.Unlock()
		return err
	}
}

// Fail returns a work function that records its call and returns err.
func (r *Recorder) Fail(id string, err error) func(context.Context, *session.Session) error {
	return func(context.Context, *session.Session) error {
		now := time.Now()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[id]++
		r.records[id] = &ExecutionRecord{Start: now, End: now}
		r.order = append(r.order, id)
		return err
	}
}

// Record returns the execution record for id.
func (r *Recorder) Record(id string) (ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Calls returns how many times the work function for id was invoked.
func (r *Recorder) Calls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

// Order returns ids in completion order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
