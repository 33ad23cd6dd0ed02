package hcl_adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/testutil"
)

// writeBuildFile writes content to build.hcl in a fresh directory and returns
// the directory.
func writeBuildFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.hcl"), []byte(content), 0o600))
	return dir
}

func loadModel(t *testing.T, content string) (*config.Model, string) {
	t.Helper()
	dir := writeBuildFile(t, content)
	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	return model, dir
}

// journal records the messages passed to the test task kinds.
type journal struct {
	mu       sync.Mutex
	messages []string
}

func (j *journal) add(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.messages = append(j.messages, msg)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.messages...)
}

type recordInput struct {
	Message string `hcl:"message"`
}

type setInput struct {
	Key   string `hcl:"key"`
	Value string `hcl:"value"`
}

type failInput struct {
	Message string `hcl:"message,optional"`
}

// testModule registers record, set and fail task kinds backed by a journal.
type testModule struct {
	j *journal
}

func (m *testModule) Register(r *registry.Registry) {
	r.RegisterTask("record", registry.Handler("Records a message.",
		func(_ context.Context, _ *session.Session, in *recordInput) error {
			m.j.add(in.Message)
			return nil
		}))
	r.RegisterTask("set", registry.Handler("Stores a property.",
		func(_ context.Context, sess *session.Session, in *setInput) error {
			sess.Props.Put(in.Key, in.Value)
			return nil
		}))
	r.RegisterTask("fail", registry.Handler("Always fails.",
		func(_ context.Context, _ *session.Session, in *failInput) error {
			m.j.add("fail")
			msg := in.Message
			if msg == "" {
				msg = "failed on purpose"
			}
			return errors.New(msg)
		}))
}

// compileAndRun loads content, compiles it against the test kinds and runs
// the named targets.
func compileAndRun(t *testing.T, content string, props map[string]any, targets ...string) (*dag.Report, *journal, error) {
	t.Helper()
	model, dir := loadModel(t, content)
	j := &journal{}
	builders, err := NewCompiler(registry.New(&testModule{j: j}), props, dir).Compile(context.Background(), model)
	require.NoError(t, err)

	g := dag.New()
	for _, b := range builders {
		require.NoError(t, g.Add(b))
	}
	sess, _ := testutil.NewSession(t)
	for k, v := range props {
		sess.Props.Put(k, v)
	}
	report, err := g.Run(context.Background(), sess, targets...)
	return report, j, err
}

func compileOnly(t *testing.T, content string, props map[string]any) error {
	t.Helper()
	model, dir := loadModel(t, content)
	_, err := NewCompiler(registry.New(&testModule{j: &journal{}}), props, dir).Compile(context.Background(), model)
	return err
}
