package clone

import (
	"sort"
	"time"

	"github.com/gotrs-io/eventclone/internal/models"
)

// stepRef names a step by kind and operation.
type stepRef struct {
	Kind      models.EntityKind
	Operation models.StepOperation
}

func (r stepRef) key() string { return string(r.Kind) + ":" + string(r.Operation) }

// topologyRow is one fixed position in the execution order.
type topologyRow struct {
	Seq       int
	Kind      models.EntityKind
	Operation models.StepOperation
	DependsOn []stepRef
}

// cloneTopology lists every clone step, parents before children.
var cloneTopology = []topologyRow{
	{Seq: 1, Kind: models.KindTaxonomyTypes, Operation: models.OpAssociate},
	{Seq: 2, Kind: models.KindDivisions, Operation: models.OpAssociate},
	{Seq: 3, Kind: models.KindSources, Operation: models.OpAssociate},
	{Seq: 4, Kind: models.KindMainZones, Operation: models.OpCopy},
	{Seq: 5, Kind: models.KindSubZones, Operation: models.OpCopy,
		DependsOn: []stepRef{{models.KindMainZones, models.OpCopy}}},
	{Seq: 6, Kind: models.KindCameraZones, Operation: models.OpCopy},
	{Seq: 7, Kind: models.KindMessageCenters, Operation: models.OpCopy},
	{Seq: 8, Kind: models.KindReferenceMaterials, Operation: models.OpCopy},
	{Seq: 9, Kind: models.KindPresetMessages, Operation: models.OpCopy},
	{Seq: 10, Kind: models.KindDepartments, Operation: models.OpCopy},
	{Seq: 11, Kind: models.KindContacts, Operation: models.OpCopy,
		DependsOn: []stepRef{{models.KindDepartments, models.OpCopy}}},
}

// importTopology links each shared kind to the target and then unlinks it
// from the source.
func importTopology() []topologyRow {
	var rows []topologyRow
	for i, kind := range models.SharedKinds() {
		rows = append(rows,
			topologyRow{Seq: 2*i + 1, Kind: kind, Operation: models.OpAssociate},
			topologyRow{Seq: 2*i + 2, Kind: kind, Operation: models.OpDisassociate,
				DependsOn: []stepRef{{kind, models.OpAssociate}}},
		)
	}
	return rows
}

// Plan is the ordered step list of one job.
type Plan struct {
	JobID string
	Steps []*models.CloneStep
	deps  map[string][]string
}

// DependsOn returns the keys of the steps that must complete before the step.
func (p *Plan) DependsOn(stepKey string) []string {
	return p.deps[stepKey]
}

// Selected returns the steps that do work.
func (p *Plan) Selected() []*models.CloneStep {
	var out []*models.CloneStep
	for _, s := range p.Steps {
		if s.Selected {
			out = append(out, s)
		}
	}
	return out
}

// BuildPlan expands the job's scope into one step per topology row.
// Unselected steps are completed on creation. A selected step whose parent
// step is unselected makes the whole plan invalid: that step is marked
// failed and a topology violation is returned alongside the plan.
func BuildPlan(job *models.CloneJob, now time.Time) (*Plan, error) {
	rows := cloneTopology
	if job.Type == models.JobTypeImport {
		rows = importTopology()
	}

	selected := func(row topologyRow) bool {
		if job.Type == models.JobTypeImport && !row.Kind.Shared() {
			return false
		}
		return job.Scope.Selects(row.Kind)
	}

	plan := &Plan{JobID: job.ID, deps: make(map[string][]string)}
	byKey := make(map[string]*models.CloneStep, len(rows))
	for _, row := range rows {
		step := &models.CloneStep{
			JobID:     job.ID,
			Seq:       row.Seq,
			Kind:      row.Kind,
			Operation: row.Operation,
			Selected:  selected(row),
			Status:    models.StepPending,
		}
		if !step.Selected {
			done := now
			step.Status = models.StepCompleted
			step.CompletedAt = &done
		}
		for _, dep := range row.DependsOn {
			plan.deps[step.Key()] = append(plan.deps[step.Key()], dep.key())
		}
		plan.Steps = append(plan.Steps, step)
		byKey[step.Key()] = step
	}
	sort.SliceStable(plan.Steps, func(i, j int) bool { return plan.Steps[i].Seq < plan.Steps[j].Seq })

	var violation error
	for _, row := range rows {
		step := byKey[stepRef{row.Kind, row.Operation}.key()]
		if !step.Selected {
			continue
		}
		for _, dep := range row.DependsOn {
			parent := byKey[dep.key()]
			if parent != nil && parent.Selected {
				continue
			}
			err := NewTopologyViolation(row.Kind, dep.Kind)
			msg := err.Error()
			failed := now
			step.Status = models.StepFailed
			step.LastError = &msg
			step.ErrorCount = 1
			step.CompletedAt = &failed
			if violation == nil {
				violation = err
			}
		}
	}
	return plan, violation
}
