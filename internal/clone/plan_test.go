package clone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/eventclone/internal/models"
)

func TestCloneTopologyCoversEveryKind(t *testing.T) {
	seen := map[models.EntityKind]bool{}
	for i, row := range cloneTopology {
		assert.Equal(t, i+1, row.Seq)
		seen[row.Kind] = true
		if row.Kind.Shared() {
			assert.Equal(t, models.OpAssociate, row.Operation)
		} else {
			assert.Equal(t, models.OpCopy, row.Operation)
		}
		for _, dep := range row.DependsOn {
			found := false
			for _, parent := range cloneTopology[:i] {
				if parent.Kind == dep.Kind && parent.Operation == dep.Operation {
					found = true
				}
			}
			assert.True(t, found, "%s must come after %s", row.Kind, dep.Kind)
		}
	}
	for _, k := range append(models.OwnedKinds(), models.SharedKinds()...) {
		assert.True(t, seen[k], "kind %s missing from topology", k)
	}
}

func TestBuildPlan_UnselectedStepsComplete(t *testing.T) {
	now := time.Now()
	plan, err := BuildPlan(newJob("job-1", models.CloneScope{CopyMainZones: true}), now)
	require.NoError(t, err)
	require.Len(t, plan.Steps, len(cloneTopology))

	selected := plan.Selected()
	require.Len(t, selected, 1)
	assert.Equal(t, models.KindMainZones, selected[0].Kind)
	assert.Equal(t, models.StepPending, selected[0].Status)

	for _, s := range plan.Steps {
		if !s.Selected {
			assert.Equal(t, models.StepCompleted, s.Status)
			require.NotNil(t, s.CompletedAt)
		}
	}
}

func TestBuildPlan_AllZonesShorthand(t *testing.T) {
	plan, err := BuildPlan(newJob("job-1", models.CloneScope{CopyAllZones: true}), time.Now())
	require.NoError(t, err)

	var kinds []models.EntityKind
	for _, s := range plan.Selected() {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []models.EntityKind{models.KindMainZones, models.KindSubZones, models.KindCameraZones}, kinds)
	assert.Equal(t, []string{"main_zones:copy"}, plan.DependsOn("sub_zones:copy"))
}

func TestBuildPlan_TopologyViolation(t *testing.T) {
	plan, err := BuildPlan(newJob("job-1", models.CloneScope{CopySubZones: true, CopyCameraZones: true}), time.Now())
	require.Error(t, err)
	assert.True(t, IsTopologyViolation(err))

	for _, s := range plan.Steps {
		if s.Kind == models.KindSubZones {
			assert.Equal(t, models.StepFailed, s.Status)
			require.NotNil(t, s.LastError)
			assert.Contains(t, *s.LastError, "main_zones")
		}
	}
}

func TestBuildPlan_ContactsNeedDepartments(t *testing.T) {
	_, err := BuildPlan(newJob("job-1", models.CloneScope{CopyContacts: true}), time.Now())
	assert.True(t, IsTopologyViolation(err))

	_, err = BuildPlan(newJob("job-1", models.CloneScope{CopyContacts: true, CopyDepartments: true}), time.Now())
	assert.NoError(t, err)
}

func TestBuildPlan_Import(t *testing.T) {
	job := newJob("job-1", models.SharedScope([]models.EntityKind{models.KindDivisions}))
	job.Type = models.JobTypeImport
	job.Scope.CopyMainZones = true

	plan, err := BuildPlan(job, time.Now())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 6)

	selected := plan.Selected()
	require.Len(t, selected, 2)
	assert.Equal(t, models.OpAssociate, selected[0].Operation)
	assert.Equal(t, models.OpDisassociate, selected[1].Operation)
	assert.Equal(t, models.KindDivisions, selected[1].Kind)
	assert.Equal(t, []string{"divisions:associate"}, plan.DependsOn(selected[1].Key()))
}
