package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/eventclone/internal/models"
)

func snapshot(id string, status models.JobStatus) *JobSnapshot {
	return &JobSnapshot{
		Job: &models.CloneJob{ID: id, Type: models.JobTypeClone, Status: status},
		Steps: []*models.CloneStep{
			{JobID: id, Seq: 1, Kind: models.KindMainZones, Operation: models.OpCopy, Status: models.StepCompleted, ProcessedCount: 2},
		},
	}
}

func TestLocalStatusCache_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lc := NewLocalStatusCache(10*time.Second, 10)
	lc.SetClock(func() time.Time { return now })

	snap, err := lc.GetStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, lc.SetStatus(ctx, snapshot("job-1", models.JobRunning)))
	snap, err = lc.GetStatus(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, models.JobRunning, snap.Job.Status)
	require.Len(t, snap.Steps, 1)
	assert.Equal(t, 2, snap.Steps[0].ProcessedCount)

	now = now.Add(11 * time.Second)
	snap, err = lc.GetStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, snap, "expired entries are misses")
	assert.Equal(t, 0, lc.Len())
}

func TestLocalStatusCache_InvalidateAndEvict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lc := NewLocalStatusCache(time.Minute, 2)
	lc.SetClock(func() time.Time { return now })

	require.NoError(t, lc.SetStatus(ctx, snapshot("a", models.JobQueued)))
	now = now.Add(time.Second)
	require.NoError(t, lc.SetStatus(ctx, snapshot("b", models.JobQueued)))
	now = now.Add(time.Second)
	_, err := lc.GetStatus(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, lc.SetStatus(ctx, snapshot("c", models.JobQueued)))

	assert.Equal(t, 2, lc.Len())
	snap, _ := lc.GetStatus(ctx, "b")
	assert.Nil(t, snap, "least recently used entry evicted")

	require.NoError(t, lc.Invalidate(ctx, "a"))
	snap, _ = lc.GetStatus(ctx, "a")
	assert.Nil(t, snap)

	assert.Error(t, lc.SetStatus(ctx, &JobSnapshot{}))
}

func TestLocalNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := NewLocalNotifier()

	ch, err := n.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, n.Publish(context.Background(), "job-1"))

	select {
	case id := <-ch:
		assert.Equal(t, "job-1", id)
	case <-time.After(time.Second):
		t.Fatal("expected wake-up")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes with the subscription context")
	case <-time.After(time.Second):
		t.Fatal("expected channel close")
	}
	assert.NoError(t, n.Publish(context.Background(), "job-2"))
}

func TestCompressRoundTrip(t *testing.T) {
	small := []byte(`{"job":{}}`)
	assert.Equal(t, small, compress(small))

	large := []byte(strings.Repeat("main_zones copy completed ", 200))
	packed := compress(large)
	assert.Less(t, len(packed), len(large))

	out, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, large, out)

	plain, err := decompress(small)
	require.NoError(t, err)
	assert.Equal(t, small, plain)
}

func TestSnapshotEncoding(t *testing.T) {
	snap := snapshot("job-1", models.JobFailed)
	reason := models.FailureReasonCancelled
	snap.Job.FailureReason = &reason
	for i := 0; i < models.MaxStepWarnings; i++ {
		snap.Steps[0].Warnings = append(snap.Steps[0].Warnings, "sub_zones: source record references a missing parent")
	}

	data, err := encodeSnapshot(snap, true)
	require.NoError(t, err)
	decoded, err := decodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, models.FailureReasonCancelled, *decoded.Job.FailureReason)
	assert.Len(t, decoded.Steps[0].Warnings, models.MaxStepWarnings)
}
