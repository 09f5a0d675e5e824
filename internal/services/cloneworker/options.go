package cloneworker

import (
	"log"
	"os"
	"time"

	"github.com/gotrs-io/eventclone/internal/cache"
)

type options struct {
	Logger       *log.Logger
	Workers      int
	PollInterval time.Duration
	LeaseTTL     time.Duration
	MaxAttempts  int
	Notifier     cache.Notifier
	StatusCache  cache.StatusCache
	Now          func() time.Time
	WorkerID     string
}

// Option applies configuration to the clone worker service.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:       log.New(os.Stdout, "[CLONE-WORKER] ", log.LstdFlags),
		Workers:      2,
		PollInterval: 2 * time.Second,
		LeaseTTL:     30 * time.Second,
		MaxAttempts:  3,
		Now:          time.Now,
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithWorkers sets how many jobs run concurrently in this process.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.Workers = n
	}
}

// WithPollInterval sets how often idle workers look for claimable jobs.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.PollInterval = d
	}
}

// WithLeaseTTL sets the lease length; leases are renewed every TTL/3.
func WithLeaseTTL(d time.Duration) Option {
	return func(o *options) {
		o.LeaseTTL = d
	}
}

// WithMaxAttempts bounds how many times a job may be claimed.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.MaxAttempts = n
	}
}

// WithNotifier subscribes workers to enqueue wake-ups.
func WithNotifier(n cache.Notifier) Option {
	return func(o *options) {
		o.Notifier = n
	}
}

// WithStatusCache sets the cache invalidated when a job finishes.
func WithStatusCache(c cache.StatusCache) Option {
	return func(o *options) {
		o.StatusCache = c
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.Now = now
	}
}

// WithWorkerID sets the lease owner name. Defaults to hostname plus a random suffix.
func WithWorkerID(id string) Option {
	return func(o *options) {
		o.WorkerID = id
	}
}
