package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTask struct {
	name     string
	schedule string
	runs     int32
	err      error
	panics   bool
}

func (s *stubTask) Name() string { return s.name }
func (s *stubTask) Schedule() string {
	if s.schedule == "" {
		return "@every 1h"
	}
	return s.schedule
}
func (s *stubTask) Timeout() time.Duration { return time.Second }
func (s *stubTask) Run(ctx context.Context) error {
	atomic.AddInt32(&s.runs, 1)
	if s.panics {
		panic("boom")
	}
	return s.err
}

func newQuietRunner(t *testing.T, tasks ...Task) *Runner {
	t.Helper()
	registry := NewTaskRegistry()
	for _, task := range tasks {
		require.NoError(t, registry.Register(task))
	}
	r := NewRunner(registry)
	r.SetLogger(log.New(io.Discard, "", 0))
	return r
}

func TestTaskRegistryNames(t *testing.T) {
	registry := NewTaskRegistry()
	require.NoError(t, registry.Register(&stubTask{name: "lease-reaper"}))
	require.NoError(t, registry.Register(&stubTask{name: "identity-retention"}))

	assert.Equal(t, []string{"identity-retention", "lease-reaper"}, registry.Names())
	_, ok := registry.Get("missing")
	assert.False(t, ok)
}

func TestRunNow(t *testing.T) {
	failing := &stubTask{name: "failing", err: errors.New("store down")}
	panicking := &stubTask{name: "panicking", panics: true}
	r := newQuietRunner(t, failing, panicking)

	assert.EqualError(t, r.RunNow(context.Background(), "failing"), "store down")
	assert.ErrorContains(t, r.RunNow(context.Background(), "panicking"), "panic: boom")
	assert.Error(t, r.RunNow(context.Background(), "missing"))
}

func TestStartRunsScheduledTasks(t *testing.T) {
	task := &stubTask{name: "every-second", schedule: "* * * * * *"}
	r := newQuietRunner(t, task)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&task.runs) > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRegisterValidatesTasks(t *testing.T) {
	registry := NewTaskRegistry()
	require.NoError(t, registry.Register(&stubTask{name: "reaper", schedule: "*/30 * * * * *"}))

	assert.ErrorContains(t, registry.Register(&stubTask{name: "reaper"}), "already registered")
	assert.ErrorContains(t, registry.Register(&stubTask{name: "bad", schedule: "not a schedule"}), "invalid schedule")
	assert.ErrorContains(t, registry.Register(&stubTask{name: "five-fields", schedule: "0 * * * *"}), "invalid schedule")
	assert.Error(t, registry.Register(&stubTask{}))
	assert.Equal(t, []string{"reaper"}, registry.Names())
}
