package clone

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
)

func TestOrchestrator_ClonesZoneScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	job := newJob("job-1", models.CloneScope{CopyMainZones: true, CopySubZones: true})

	require.NoError(t, f.orchestrator().Run(ctx, job))

	assert.Equal(t, 2, f.tables.MainZones.Count(dstCtx))
	assert.Equal(t, 3, f.tables.SubZones.Count(dstCtx))
	for _, s := range f.steps.list(job.ID) {
		assert.Equal(t, models.StepCompleted, s.Status, s.Key())
	}
	sub := f.steps.get(job.ID, models.KindSubZones, models.OpCopy)
	assert.Equal(t, 3, sub.ProcessedCount)
	assert.Equal(t, 1, sub.Attempts)
}

func TestOrchestrator_StepWritesCarryLeaseOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	owner := "worker-a"
	job := newJob("job-1", models.CloneScope{CopyMainZones: true})
	job.LeaseOwner = &owner

	f.steps.lease(job.ID, "worker-a")
	require.NoError(t, f.orchestrator().Run(ctx, job))
	assert.Equal(t, models.StepCompleted, f.steps.get(job.ID, models.KindMainZones, models.OpCopy).Status)

	stale := newJob("job-2", models.CloneScope{CopyMainZones: true})
	stale.LeaseOwner = &owner
	f.steps.lease(stale.ID, "worker-b")
	err := f.orchestrator().Run(ctx, stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, errLeaseHeldElsewhere)
	assert.Equal(t, models.StepPending, f.steps.get(stale.ID, models.KindMainZones, models.OpCopy).Status,
		"a worker without the lease records nothing")
}

func TestOrchestrator_TopologyViolationCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	job := newJob("job-1", models.CloneScope{CopySubZones: true})

	err := f.orchestrator().Run(ctx, job)
	require.Error(t, err)
	assert.True(t, IsTopologyViolation(err))

	assert.Equal(t, 0, f.tables.SubZones.Count(dstCtx))
	assert.Equal(t, 0, f.tables.MainZones.Count(dstCtx))
	assert.Equal(t, models.StepFailed, f.steps.get(job.ID, models.KindSubZones, models.OpCopy).Status)
}

func TestOrchestrator_PartialFailureKeepsCompletedSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	require.NoError(t, f.tables.CameraZones.Insert(ctx, models.CameraZone{ID: "cam-1", ContextID: srcCtx}))
	f.tables.CameraZones.InjectFault(func(op string) error {
		if op == "insert" {
			return errors.New("check constraint violated")
		}
		return nil
	})
	job := newJob("job-1", models.CloneScope{CopyAllZones: true, CopyPresetMessages: true})

	err := f.orchestrator().Run(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera_zones")
	assert.Contains(t, err.Error(), "cam-1")

	assert.Equal(t, 2, f.tables.MainZones.Count(dstCtx))
	assert.Equal(t, 3, f.tables.SubZones.Count(dstCtx))

	cam := f.steps.get(job.ID, models.KindCameraZones, models.OpCopy)
	assert.Equal(t, models.StepFailed, cam.Status)
	assert.Equal(t, 1, cam.Attempts, "permanent errors are not retried")
	assert.Equal(t, 1, cam.ErrorCount)
	require.NotNil(t, cam.LastError)

	preset := f.steps.get(job.ID, models.KindPresetMessages, models.OpCopy)
	assert.Equal(t, models.StepPending, preset.Status, "no step starts after a failure")
}

func TestOrchestrator_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	var failures int32
	f.tables.MainZones.InjectFault(func(op string) error {
		if op == "insert" && atomic.AddInt32(&failures, 1) <= 2 {
			return repository.ErrUnavailable
		}
		return nil
	})
	job := newJob("job-1", models.CloneScope{CopyMainZones: true})

	require.NoError(t, f.orchestrator().Run(ctx, job))

	step := f.steps.get(job.ID, models.KindMainZones, models.OpCopy)
	assert.Equal(t, models.StepCompleted, step.Status)
	assert.Equal(t, 3, step.Attempts)
	assert.Nil(t, step.LastError)
	assert.Equal(t, 2, f.tables.MainZones.Count(dstCtx))
}

func TestOrchestrator_RetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	f.tables.MainZones.InjectFault(func(op string) error {
		if op == "list" {
			return repository.ErrUnavailable
		}
		return nil
	})
	job := newJob("job-1", models.CloneScope{CopyMainZones: true, CopySubZones: true})

	err := f.orchestrator().Run(ctx, job)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	main := f.steps.get(job.ID, models.KindMainZones, models.OpCopy)
	assert.Equal(t, models.StepFailed, main.Status)
	assert.Equal(t, 3, main.Attempts)
	assert.Equal(t, models.StepPending, f.steps.get(job.ID, models.KindSubZones, models.OpCopy).Status)
}

func TestOrchestrator_ResumeSkipsCompletedSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	f.tables.SubZones.InjectFault(func(op string) error {
		if op == "list" {
			return errors.New("disk full")
		}
		return nil
	})
	job := newJob("job-1", models.CloneScope{CopyMainZones: true, CopySubZones: true})
	require.Error(t, f.orchestrator().Run(ctx, job))

	f.tables.SubZones.InjectFault(nil)
	var mainRuns int32
	f.steps.onUpdate = func(step *models.CloneStep) {
		if step.Kind == models.KindMainZones && step.Status == models.StepRunning {
			atomic.AddInt32(&mainRuns, 1)
		}
	}
	require.NoError(t, f.orchestrator().Run(ctx, job))

	assert.Zero(t, atomic.LoadInt32(&mainRuns), "completed steps are not re-run")
	assert.Equal(t, 2, f.tables.MainZones.Count(dstCtx))
	assert.Equal(t, 3, f.tables.SubZones.Count(dstCtx))
}

func TestOrchestrator_CancelBetweenSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	job := newJob("job-1", models.CloneScope{CopyMainZones: true, CopySubZones: true})
	f.steps.onUpdate = func(step *models.CloneStep) {
		if step.Kind == models.KindMainZones && step.Status == models.StepCompleted {
			f.steps.cancel(job.ID)
		}
	}

	err := f.orchestrator().Run(ctx, job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, CodeCancelled, CodeOf(err))

	assert.Equal(t, 2, f.tables.MainZones.Count(dstCtx), "finished steps stay")
	assert.Equal(t, 0, f.tables.SubZones.Count(dstCtx))
	assert.Equal(t, models.StepPending, f.steps.get(job.ID, models.KindSubZones, models.OpCopy).Status)
}

func TestOrchestrator_ConcurrentStepsRespectBarrier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedZones(t)
	require.NoError(t, f.tables.CameraZones.Insert(ctx, models.CameraZone{ID: "cam-1", ContextID: srcCtx}))
	require.NoError(t, f.tables.MessageCenters.Insert(ctx, models.MessageCenter{ID: "mc-1", ContextID: srcCtx}))
	f.seedLinks(t, models.KindSources, srcCtx, "s1", "s2")

	var mainDone atomic.Bool
	var violated atomic.Bool
	f.steps.onUpdate = func(step *models.CloneStep) {
		switch {
		case step.Kind == models.KindMainZones && step.Status == models.StepCompleted:
			mainDone.Store(true)
		case step.Kind == models.KindSubZones && step.Status == models.StepRunning && !mainDone.Load():
			violated.Store(true)
		}
	}
	job := newJob("job-1", models.CloneScope{CopyAllZones: true, CopyMessageCenters: true, AssociateSources: true})

	require.NoError(t, f.orchestrator(WithStepConcurrency(4)).Run(ctx, job))

	assert.False(t, violated.Load(), "sub-zones started before main zones completed")
	assert.Equal(t, 3, f.tables.SubZones.Count(dstCtx))
	assert.Equal(t, 1, f.tables.CameraZones.Count(dstCtx))
	assert.Equal(t, 1, f.tables.MessageCenters.Count(dstCtx))
	assert.Equal(t, 2, f.links.Count(models.KindSources, dstCtx))
}

func TestOrchestrator_ImportMovesLinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedLinks(t, models.KindTaxonomyTypes, srcCtx, "t1", "t2")
	f.seedLinks(t, models.KindSources, srcCtx, "s1")
	job := newJob("job-1", models.SharedScope(nil))
	job.Type = models.JobTypeImport

	require.NoError(t, f.orchestrator().Run(ctx, job))

	assert.Equal(t, 2, f.links.Count(models.KindTaxonomyTypes, dstCtx))
	assert.Equal(t, 0, f.links.Count(models.KindTaxonomyTypes, srcCtx))
	assert.Equal(t, 1, f.links.Count(models.KindSources, dstCtx))
	assert.Equal(t, 0, f.links.Count(models.KindSources, srcCtx))

	unlink := f.steps.get(job.ID, models.KindTaxonomyTypes, models.OpDisassociate)
	assert.Equal(t, 2, unlink.ProcessedCount)
}

func TestOrchestrator_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	f.seedZones(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.orchestrator().Run(ctx, newJob("job-1", models.CloneScope{CopyMainZones: true}))
	require.Error(t, err)
	assert.Equal(t, 0, f.tables.MainZones.Count(dstCtx))
}
