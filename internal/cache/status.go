package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gotrs-io/eventclone/internal/models"
)

// JobSnapshot is the cached view of a job and its steps.
type JobSnapshot struct {
	Job      *models.CloneJob    `json:"job"`
	Steps    []*models.CloneStep `json:"steps"`
	CachedAt time.Time           `json:"cached_at"`
}

// StatusCache keeps recent job snapshots for status reads.
// A miss is reported as (nil, nil).
type StatusCache interface {
	GetStatus(ctx context.Context, jobID string) (*JobSnapshot, error)
	SetStatus(ctx context.Context, snap *JobSnapshot) error
	Invalidate(ctx context.Context, jobID string) error
}

// Notifier wakes idle workers when a job is enqueued.
type Notifier interface {
	Publish(ctx context.Context, jobID string) error
	// Subscribe delivers published job ids until ctx is done.
	Subscribe(ctx context.Context) (<-chan string, error)
}

var cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "eventclone_status_cache_operations_total",
	Help: "Status cache lookups and writes by backend and result",
}, []string{"backend", "result"})

func statusKey(prefix, jobID string) string {
	return prefix + "job:" + jobID
}

func encodeSnapshot(snap *JobSnapshot, compressed bool) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job snapshot: %w", err)
	}
	if compressed {
		data = compress(data)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*JobSnapshot, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress job snapshot: %w", err)
	}
	var snap JobSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode job snapshot: %w", err)
	}
	return &snap, nil
}
