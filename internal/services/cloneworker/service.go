package cloneworker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/gotrs-io/eventclone/internal/cache"
	"github.com/gotrs-io/eventclone/internal/clone"
	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/models"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
	statusAbandoned = "abandoned"
)

var (
	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventclone_jobs_finished_total",
		Help: "Clone jobs finished by this worker, by outcome",
	}, []string{"status"})
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventclone_job_duration_seconds",
		Help:    "Wall time of one job execution",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"type", "status"})
)

// errLeaseLost cancels a job context when another worker took over.
var errLeaseLost = errors.New("lease lost")

// JobRunner executes one claimed job.
type JobRunner interface {
	Run(ctx context.Context, job *models.CloneJob) error
}

// Service claims clone jobs from the queue and runs them.
type Service struct {
	queue        clonequeue.Queue
	runner       JobRunner
	logger       *log.Logger
	workers      int
	pollInterval time.Duration
	leaseTTL     time.Duration
	maxAttempts  int
	notifier     cache.Notifier
	statusCache  cache.StatusCache
	now          func() time.Time
	workerID     string
}

// NewService wires a worker pool around the queue and the orchestrator.
func NewService(queue clonequeue.Queue, runner JobRunner, opts ...Option) *Service {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = log.New(os.Stdout, "[CLONE-WORKER] ", log.LstdFlags)
	}
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 2 * time.Second
	}
	if options.LeaseTTL <= 0 {
		options.LeaseTTL = 30 * time.Second
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.WorkerID == "" {
		options.WorkerID = defaultWorkerID()
	}

	return &Service{
		queue:        queue,
		runner:       runner,
		logger:       options.Logger,
		workers:      options.Workers,
		pollInterval: options.PollInterval,
		leaseTTL:     options.LeaseTTL,
		maxAttempts:  options.MaxAttempts,
		notifier:     options.Notifier,
		statusCache:  options.StatusCache,
		now:          options.Now,
		workerID:     options.WorkerID,
	}
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

// WorkerID returns the lease owner name used by this service.
func (s *Service) WorkerID() string { return s.workerID }

// Run starts the worker loops and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	wake := make(chan struct{}, s.workers)
	if s.notifier != nil {
		ids, err := s.notifier.Subscribe(ctx)
		if err != nil {
			s.logger.Printf("wake-up subscription failed, polling only: %v", err)
		} else {
			go forwardWakeups(ctx, ids, wake)
		}
	}

	s.logger.Printf("starting %d workers as %s (lease %s, poll %s)", s.workers, s.workerID, s.leaseTTL, s.pollInterval)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.loop(gctx, wake)
			return nil
		})
	}
	err := g.Wait()
	s.logger.Printf("workers stopped")
	return err
}

func forwardWakeups(ctx context.Context, ids <-chan string, wake chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ids:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Service) loop(ctx context.Context, wake <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := s.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Printf("claim failed: %v", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// ProcessNext claims and runs at most one job. It reports whether a job was claimed.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	job, err := s.queue.Claim(ctx, s.workerID, s.leaseTTL, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	s.execute(ctx, job)
	return true, nil
}

func (s *Service) execute(ctx context.Context, job *models.CloneJob) {
	start := s.now()
	s.logger.Printf("job %s (%s) claimed, attempt %d: %s -> %s",
		job.ID, job.Type, job.Attempts, job.SourceContextID, job.TargetContextID)

	jobCtx, cancel := context.WithCancelCause(ctx)
	renewDone := make(chan struct{})
	go s.renewLease(jobCtx, cancel, job.ID, renewDone)

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		runErr = s.runner.Run(jobCtx, job)
	}()

	cancel(nil)
	<-renewDone

	if errors.Is(context.Cause(jobCtx), errLeaseLost) {
		s.logger.Printf("job %s: lease lost, abandoning without a final write", job.ID)
		s.finish(job, start, statusAbandoned)
		return
	}
	if ctx.Err() != nil {
		s.logger.Printf("job %s: worker shutting down, leaving job for reclaim", job.ID)
		s.finish(job, start, statusAbandoned)
		return
	}

	finalCtx := context.WithoutCancel(ctx)
	var status string
	var err error
	switch {
	case runErr == nil:
		status = statusCompleted
		err = s.queue.Complete(finalCtx, job.ID, s.workerID)
	case errors.Is(runErr, clone.ErrCancelled):
		status = statusCancelled
		err = s.queue.Fail(finalCtx, job.ID, s.workerID, models.FailureReasonCancelled)
	default:
		status = statusFailed
		err = s.queue.Fail(finalCtx, job.ID, s.workerID, runErr.Error())
	}

	switch {
	case errors.Is(err, clonequeue.ErrLeaseLost):
		s.logger.Printf("job %s: lease lost before final write", job.ID)
		status = statusAbandoned
	case err != nil:
		s.logger.Printf("job %s: failed to record %s: %v", job.ID, status, err)
	case runErr != nil:
		s.logger.Printf("job %s %s: %v", job.ID, status, runErr)
	default:
		s.logger.Printf("job %s completed in %s", job.ID, s.now().Sub(start))
	}
	s.finish(job, start, status)
}

func (s *Service) finish(job *models.CloneJob, start time.Time, status string) {
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(string(job.Type), status).Observe(s.now().Sub(start).Seconds())
	if s.statusCache != nil {
		if err := s.statusCache.Invalidate(context.Background(), job.ID); err != nil {
			s.logger.Printf("job %s: status cache invalidation failed: %v", job.ID, err)
		}
	}
}

// renewLease extends the lease every TTL/3 until ctx ends. Losing the lease cancels ctx.
func (s *Service) renewLease(ctx context.Context, cancel context.CancelCauseFunc, jobID string, done chan<- struct{}) {
	defer close(done)
	interval := s.leaseTTL / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.queue.RenewLease(ctx, jobID, s.workerID, s.leaseTTL)
			switch {
			case err == nil:
			case errors.Is(err, clonequeue.ErrLeaseLost):
				cancel(errLeaseLost)
				return
			case ctx.Err() != nil:
				return
			default:
				s.logger.Printf("job %s: lease renewal failed: %v", jobID, err)
			}
		}
	}
}
