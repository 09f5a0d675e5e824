package clone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gotrs-io/eventclone/internal/models"
)

// StepStore persists step progress for the orchestrator.
type StepStore interface {
	// EnsureSteps inserts the steps that do not exist yet and returns every
	// step of the job as stored. Existing steps keep their recorded state.
	EnsureSteps(ctx context.Context, jobID string, steps []*models.CloneStep) ([]*models.CloneStep, error)
	// UpdateStep records step progress only while owner holds the lease of
	// the running job.
	UpdateStep(ctx context.Context, owner string, step *models.CloneStep) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)
}

// RetryPolicy bounds the attempts of a single step.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries a step three times with backoff between 200ms and 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 200 * time.Millisecond, MaxInterval: 5 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Orchestrator executes a job's plan against the cloners and the resolver.
type Orchestrator struct {
	cloners     map[models.EntityKind]EntityCloner
	resolver    *AssociationResolver
	steps       StepStore
	logger      *log.Logger
	retry       RetryPolicy
	concurrency int
	debug       bool
	now         func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger overrides the orchestrator logger.
func WithLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRetryPolicy sets the per-step retry budget.
func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.retry = p }
}

// WithStepConcurrency allows up to n independent steps of a job to run at once.
func WithStepConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithDebug enables per-step progress logs.
func WithDebug(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.debug = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the engine components together.
func NewOrchestrator(cloners map[models.EntityKind]EntityCloner, resolver *AssociationResolver, steps StepStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		cloners:     cloners,
		resolver:    resolver,
		steps:       steps,
		logger:      log.New(os.Stdout, "[ORCHESTRATOR] ", log.LstdFlags),
		retry:       DefaultRetryPolicy(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type stepResult struct {
	step *models.CloneStep
	err  error
}

// Run executes every step of the job that has not completed yet. Steps run
// in topology order; a step starts only once the steps it depends on have
// completed. After the first failure no further steps start and the error
// of that step is returned. Completed steps are never undone.
func (o *Orchestrator) Run(ctx context.Context, job *models.CloneJob) error {
	plan, planErr := BuildPlan(job, o.now().UTC())

	stored, err := o.steps.EnsureSteps(ctx, job.ID, plan.Steps)
	if err != nil {
		return wrapError(err, "", "", "ensure steps")
	}

	if planErr != nil {
		for _, step := range plan.Steps {
			if step.Status == models.StepFailed {
				if err := o.steps.UpdateStep(ctx, leaseOwner(job), step); err != nil {
					o.logger.Printf("Failed to record topology violation for job %s: %v", job.ID, err)
				}
			}
		}
		o.logger.Printf("Job %s rejected: %v", job.ID, planErr)
		return planErr
	}

	status := make(map[string]models.StepStatus, len(stored))
	var pending []*models.CloneStep
	for _, step := range stored {
		if step.Status == models.StepCompleted {
			status[step.Key()] = models.StepCompleted
			continue
		}
		// Running or failed rows were left by an attempt that lost its lease.
		step.Status = models.StepPending
		status[step.Key()] = models.StepPending
		pending = append(pending, step)
	}

	results := make(chan stepResult)
	running := 0
	var firstErr error

	ready := func(step *models.CloneStep) bool {
		for _, dep := range plan.DependsOn(step.Key()) {
			if s, ok := status[dep]; ok && s != models.StepCompleted {
				return false
			}
		}
		return true
	}

	for {
		for firstErr == nil && running < o.concurrency {
			next := -1
			for i, step := range pending {
				if ready(step) {
					next = i
					break
				}
			}
			if next < 0 {
				break
			}
			if err := o.checkCancelled(ctx, job.ID); err != nil {
				firstErr = err
				break
			}
			step := pending[next]
			pending = append(pending[:next], pending[next+1:]...)
			status[step.Key()] = models.StepRunning
			running++
			go func() {
				results <- stepResult{step: step, err: o.runStep(ctx, job, step)}
			}()
		}

		if running == 0 {
			break
		}
		res := <-results
		running--
		status[res.step.Key()] = res.step.Status
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if len(pending) > 0 {
		return &Error{Code: CodeInternal, Op: "schedule", Err: fmt.Errorf("%d steps could not be scheduled", len(pending))}
	}
	return nil
}

// checkCancelled runs between steps. A failed lookup does not stop the job.
func (o *Orchestrator) checkCancelled(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return wrapError(err, "", "", "schedule")
	}
	cancelled, err := o.steps.CancelRequested(ctx, jobID)
	if err != nil {
		o.logger.Printf("Cancel check for job %s failed: %v", jobID, err)
		return nil
	}
	if cancelled {
		o.logger.Printf("Job %s cancelled between steps", jobID)
		return &Error{Code: CodeCancelled, Err: ErrCancelled}
	}
	return nil
}

// runStep executes one step with retries and records its outcome.
func (o *Orchestrator) runStep(ctx context.Context, job *models.CloneJob, step *models.CloneStep) error {
	started := o.now().UTC()
	step.Status = models.StepRunning
	step.StartedAt = &started
	step.CompletedAt = nil
	step.Attempts = 0
	step.LastError = nil
	if err := o.steps.UpdateStep(ctx, leaseOwner(job), step); err != nil {
		o.logger.Printf("Failed to mark step %s of job %s running: %v", step.Key(), job.ID, err)
	}
	if o.debug {
		o.logger.Printf("Job %s: starting step %d %s", job.ID, step.Seq, step.Key())
	}

	op := func() error {
		step.Attempts++
		counts, err := o.execute(ctx, job, step)
		step.ProcessedCount = counts.Processed
		step.SkippedCount = counts.Skipped
		step.ErrorCount = counts.Errors
		step.Warnings = counts.Warnings
		if err == nil {
			return nil
		}
		if step.ErrorCount == 0 {
			step.ErrorCount = 1
		}
		msg := err.Error()
		step.LastError = &msg
		if IsTransient(err) && ctx.Err() == nil {
			stepRetries.WithLabelValues(string(step.Kind), string(step.Operation)).Inc()
			o.logger.Printf("Job %s: step %s attempt %d failed, will retry: %v", job.ID, step.Key(), step.Attempts, err)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, o.retry.backOff(ctx))
	if err != nil && ctx.Err() != nil && !errors.As(err, new(*Error)) {
		err = wrapError(err, step.Kind, "", string(step.Operation))
	}

	finished := o.now().UTC()
	step.CompletedAt = &finished
	label := "completed"
	if err != nil {
		step.Status = models.StepFailed
		label = "failed"
		o.logger.Printf("Job %s: step %s failed after %d attempts: %v", job.ID, step.Key(), step.Attempts, err)
	} else {
		step.Status = models.StepCompleted
		step.LastError = nil
		if o.debug {
			o.logger.Printf("Job %s: step %s done (processed=%d skipped=%d)", job.ID, step.Key(), step.ProcessedCount, step.SkippedCount)
		}
	}
	stepDuration.WithLabelValues(string(step.Kind), string(step.Operation), label).Observe(finished.Sub(started).Seconds())

	// Record the outcome even when the job context was cancelled mid-step.
	if uerr := o.steps.UpdateStep(context.WithoutCancel(ctx), leaseOwner(job), step); uerr != nil {
		o.logger.Printf("Failed to record step %s of job %s: %v", step.Key(), job.ID, uerr)
		if err == nil {
			return wrapError(uerr, step.Kind, "", "record step")
		}
	}
	return err
}

func leaseOwner(job *models.CloneJob) string {
	if job.LeaseOwner == nil {
		return ""
	}
	return *job.LeaseOwner
}

func (o *Orchestrator) execute(ctx context.Context, job *models.CloneJob, step *models.CloneStep) (StepCounts, error) {
	switch step.Operation {
	case models.OpCopy:
		cloner, ok := o.cloners[step.Kind]
		if !ok {
			return StepCounts{}, &Error{Code: CodeInternal, Kind: step.Kind, Op: string(step.Operation), Err: fmt.Errorf("no cloner registered")}
		}
		return cloner.CloneAll(ctx, job.ID, job.SourceContextID, job.TargetContextID)
	case models.OpAssociate:
		linked, skipped, err := o.resolver.Associate(ctx, job.ID, step.Kind, job.SourceContextID, job.TargetContextID)
		return StepCounts{Processed: linked, Skipped: skipped}, err
	case models.OpDisassociate:
		removed, err := o.resolver.DisassociateConfirmed(ctx, job.ID, step.Kind, job.SourceContextID, job.TargetContextID)
		return StepCounts{Processed: removed}, err
	}
	return StepCounts{}, &Error{Code: CodeInternal, Kind: step.Kind, Op: string(step.Operation), Err: fmt.Errorf("unknown operation")}
}
