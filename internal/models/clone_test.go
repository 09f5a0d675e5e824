package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKinds(t *testing.T) {
	for _, k := range OwnedKinds() {
		assert.True(t, k.Owned(), k)
		assert.False(t, k.Shared(), k)
		assert.True(t, k.Valid(), k)
	}
	for _, k := range SharedKinds() {
		assert.True(t, k.Shared(), k)
		assert.False(t, k.Owned(), k)
	}
	assert.False(t, EntityKind("tickets").Valid())
	assert.Len(t, OwnedKinds(), 8)
	assert.Equal(t, OwnedKinds(), OwnedKinds(), "order must be stable")
}

func TestCloneScope(t *testing.T) {
	t.Run("CopyAllZonesExpands", func(t *testing.T) {
		s := CloneScope{CopyAllZones: true}
		assert.True(t, s.Selects(KindMainZones))
		assert.True(t, s.Selects(KindSubZones))
		assert.True(t, s.Selects(KindCameraZones))
		assert.False(t, s.Selects(KindContacts))

		n := s.Normalize()
		assert.True(t, n.CopyMainZones)
		assert.True(t, n.CopyCameraZones)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.True(t, CloneScope{}.Empty())
		assert.False(t, CloneScope{AssociateSources: true}.Empty())
		assert.False(t, CloneScope{CopyPresetMessages: true}.Empty())
	})

	t.Run("SharedScope", func(t *testing.T) {
		all := SharedScope(nil)
		for _, k := range SharedKinds() {
			assert.True(t, all.Selects(k), k)
		}
		for _, k := range OwnedKinds() {
			assert.False(t, all.Selects(k), k)
		}

		one := SharedScope([]EntityKind{KindDivisions})
		assert.True(t, one.AssociateDivisions)
		assert.False(t, one.AssociateTaxonomyTypes)
		assert.False(t, one.AssociateSources)
	})
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestCloneJobCloneIsDeep(t *testing.T) {
	owner := "worker-1"
	reason := "boom"
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &CloneJob{ID: "j1", LeaseOwner: &owner, FailureReason: &reason, LeaseExpiresAt: &now, StartedAt: &now}

	cp := job.Clone()
	*cp.LeaseOwner = "worker-2"
	*cp.FailureReason = "other"
	*cp.LeaseExpiresAt = now.Add(time.Hour)

	assert.Equal(t, "worker-1", *job.LeaseOwner)
	assert.Equal(t, "boom", *job.FailureReason)
	assert.Equal(t, now, *job.LeaseExpiresAt)
	assert.Nil(t, (*CloneJob)(nil).Clone())
}

func TestCloneStep(t *testing.T) {
	step := &CloneStep{JobID: "j1", Kind: KindSubZones, Operation: OpCopy}
	assert.Equal(t, "sub_zones:copy", step.Key())

	for i := 0; i < 3; i++ {
		step.Warnings = append(step.Warnings, fmt.Sprintf("warning %d", i))
	}

	cp := step.Clone()
	require.Len(t, cp.Warnings, 3)
	cp.Warnings[0] = "changed"
	assert.Equal(t, "warning 0", step.Warnings[0])
}
