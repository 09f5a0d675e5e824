package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalStatusCache is an in-process StatusCache with TTL and LRU eviction.
type LocalStatusCache struct {
	mu      sync.Mutex
	items   map[string]*localItem
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type localItem struct {
	data       []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// NewLocalStatusCache creates an in-process cache.
func NewLocalStatusCache(ttl time.Duration, maxSize int) *LocalStatusCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LocalStatusCache{
		items:   make(map[string]*localItem),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (lc *LocalStatusCache) SetClock(now func() time.Time) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.now = now
}

func (lc *LocalStatusCache) GetStatus(ctx context.Context, jobID string) (*JobSnapshot, error) {
	lc.mu.Lock()
	item, ok := lc.items[jobID]
	now := lc.now()
	if ok && now.After(item.expiresAt) {
		delete(lc.items, jobID)
		ok = false
	}
	if !ok {
		lc.mu.Unlock()
		cacheOps.WithLabelValues("local", "miss").Inc()
		return nil, nil
	}
	item.accessedAt = now
	data := item.data
	lc.mu.Unlock()

	cacheOps.WithLabelValues("local", "hit").Inc()
	return decodeSnapshot(data)
}

func (lc *LocalStatusCache) SetStatus(ctx context.Context, snap *JobSnapshot) error {
	if snap == nil || snap.Job == nil {
		return fmt.Errorf("job snapshot is empty")
	}
	data, err := encodeSnapshot(snap, false)
	if err != nil {
		return err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if _, exists := lc.items[snap.Job.ID]; !exists && len(lc.items) >= lc.maxSize {
		lc.evictLRU()
	}
	now := lc.now()
	lc.items[snap.Job.ID] = &localItem{data: data, expiresAt: now.Add(lc.ttl), accessedAt: now}
	cacheOps.WithLabelValues("local", "set").Inc()
	return nil
}

func (lc *LocalStatusCache) Invalidate(ctx context.Context, jobID string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	delete(lc.items, jobID)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (lc *LocalStatusCache) Len() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.items)
}

// evictLRU removes the least recently used item. Callers hold mu.
func (lc *LocalStatusCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, item := range lc.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}
	if oldestKey != "" {
		delete(lc.items, oldestKey)
	}
}

// LocalNotifier fans wake-ups out to in-process subscribers.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewLocalNotifier creates an in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan string]struct{})}
}

func (n *LocalNotifier) Publish(ctx context.Context, jobID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- jobID:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}
