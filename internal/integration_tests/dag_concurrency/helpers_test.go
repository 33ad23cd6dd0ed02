package integration_tests

import (
	"context"
	"errors"
	"time"

	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/testutil"
)

// recorderModule registers task kinds that record their executions:
// "sleeper" sleeps for duration (default 50ms), "failer" fails with message.
type recorderModule struct {
	rec *testutil.Recorder
}

type sleeperInput struct {
	ID       string `hcl:"id"`
	Duration string `hcl:"duration,optional"`
}

type failerInput struct {
	ID      string `hcl:"id"`
	Message string `hcl:"message"`
}

func newRecorderModule() *recorderModule {
	return &recorderModule{rec: testutil.NewRecorder()}
}

func (m *recorderModule) Register(r *registry.Registry) {
	r.RegisterTask("sleeper", registry.Handler("Sleeps and records.", func(ctx context.Context, sess *session.Session, in *sleeperInput) error {
		d := 50 * time.Millisecond
		if in.Duration != "" {
			parsed, err := time.ParseDuration(in.Duration)
			if err != nil {
				return err
			}
			d = parsed
		}
		return m.rec.Sleep(in.ID, d)(ctx, sess)
	}))
	r.RegisterTask("failer", registry.Handler("Fails and records.", func(ctx context.Context, sess *session.Session, in *failerInput) error {
		return m.rec.Fail(in.ID, errors.New(in.Message))(ctx, sess)
	}))
}
