package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/repository"
	"github.com/gotrs-io/eventclone/internal/runner"
)

var _ runner.Task = (*IdentityRetentionTask)(nil)

// DefaultRetentionBatch bounds how many jobs one run inspects.
const DefaultRetentionBatch = 500

// IdentityRetentionTask purges identity map entries of jobs that finished
// longer ago than the retention window. Entries of unfinished jobs are kept
// so a resumed job still finds its mappings.
type IdentityRetentionTask struct {
	queue      clonequeue.Queue
	identities repository.IdentityStore
	retention  time.Duration
	batch      int
	schedule   string
	now        func() time.Time
	logger     *log.Logger
}

// NewIdentityRetentionTask creates a new identity retention task
func NewIdentityRetentionTask(queue clonequeue.Queue, identities repository.IdentityStore, retention time.Duration, schedule string) *IdentityRetentionTask {
	if schedule == "" {
		schedule = "0 17 * * * *"
	}
	return &IdentityRetentionTask{
		queue:      queue,
		identities: identities,
		retention:  retention,
		batch:      DefaultRetentionBatch,
		schedule:   schedule,
		now:        time.Now,
		logger:     log.New(log.Writer(), "[IDENTITY-RETENTION] ", log.LstdFlags),
	}
}

// SetClock overrides the time source.
func (t *IdentityRetentionTask) SetClock(now func() time.Time) { t.now = now }

// Name returns the task name
func (t *IdentityRetentionTask) Name() string {
	return "identity-retention"
}

// Schedule returns the cron schedule
func (t *IdentityRetentionTask) Schedule() string {
	return t.schedule
}

// Timeout returns the task timeout
func (t *IdentityRetentionTask) Timeout() time.Duration {
	return 5 * time.Minute
}

// Run deletes the mappings of expired jobs.
func (t *IdentityRetentionTask) Run(ctx context.Context) error {
	jobIDs, err := t.identities.JobIDs(ctx, t.batch)
	if err != nil {
		return fmt.Errorf("failed to list mapped jobs: %w", err)
	}
	if len(jobIDs) == 0 {
		return nil
	}

	cutoff := t.now().Add(-t.retention)
	var purge []string
	for _, id := range jobIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := t.queue.Get(ctx, id)
		if errors.Is(err, clonequeue.ErrJobNotFound) {
			purge = append(purge, id)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load job %s: %w", id, err)
		}
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			purge = append(purge, id)
		}
	}
	if len(purge) == 0 {
		return nil
	}

	n, err := t.identities.DeleteByJobs(ctx, purge)
	if err != nil {
		return fmt.Errorf("failed to purge identities: %w", err)
	}
	t.logger.Printf("Purged %d identity entries of %d jobs", n, len(purge))
	return nil
}
