package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts the same expressions as the runner's cron: a
// leading seconds field, or a descriptor such as "@every 30s".
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Task is a maintenance job run on a cron schedule.
type Task interface {
	// Name is unique within a registry.
	Name() string

	// Schedule is a cron expression with a seconds field.
	Schedule() string

	Run(ctx context.Context) error

	// Timeout bounds a single run.
	Timeout() time.Duration
}

// TaskRegistry holds the tasks a Runner schedules.
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]Task),
	}
}

// Register validates and adds a task. Names must be unique and schedules
// must parse, so a bad task fails at startup rather than when it is due.
func (r *TaskRegistry) Register(task Task) error {
	name := task.Name()
	if name == "" {
		return fmt.Errorf("task name is required")
	}
	if _, err := scheduleParser.Parse(task.Schedule()); err != nil {
		return fmt.Errorf("task %s: invalid schedule %q: %w", name, task.Schedule(), err)
	}
	if task.Timeout() <= 0 {
		return fmt.Errorf("task %s: timeout must be positive", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}
	r.tasks[name] = task
	return nil
}

// Get returns a task by name
func (r *TaskRegistry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, exists := r.tasks[name]
	return task, exists
}

// Names returns the registered task names in sorted order.
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
