package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/runner"
)

// LeaseReaperTask fails running jobs whose lease expired after the last allowed attempt.
// Jobs with attempts left are not touched; workers reclaim those.
type LeaseReaperTask struct {
	queue       clonequeue.Queue
	maxAttempts int
	schedule    string
	logger      *log.Logger
}

// NewLeaseReaperTask creates a new lease reaper task
func NewLeaseReaperTask(queue clonequeue.Queue, maxAttempts int, schedule string) runner.Task {
	if schedule == "" {
		schedule = "*/30 * * * * *"
	}
	return &LeaseReaperTask{
		queue:       queue,
		maxAttempts: maxAttempts,
		schedule:    schedule,
		logger:      log.New(log.Writer(), "[LEASE-REAPER] ", log.LstdFlags),
	}
}

// Name returns the task name
func (t *LeaseReaperTask) Name() string {
	return "lease-reaper"
}

// Schedule returns the cron schedule
func (t *LeaseReaperTask) Schedule() string {
	return t.schedule
}

// Timeout returns the task timeout
func (t *LeaseReaperTask) Timeout() time.Duration {
	return time.Minute
}

// Run fails the jobs nobody can reclaim anymore.
func (t *LeaseReaperTask) Run(ctx context.Context) error {
	n, err := t.queue.ReapExpired(ctx, t.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to reap expired jobs: %w", err)
	}
	if n > 0 {
		t.logger.Printf("Failed %d jobs whose lease expired with no attempts left", n)
	}
	return nil
}
