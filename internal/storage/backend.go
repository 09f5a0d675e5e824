package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrAssetNotFound is returned when a key has no stored asset.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrUnavailable marks backend failures that are expected to clear on retry.
	ErrUnavailable = errors.New("asset storage unavailable")
)

// Backend stores the binary assets behind reference materials.
type Backend interface {
	// Put stores content under key, replacing any existing object
	Put(ctx context.Context, key string, content []byte, contentType string) error

	// Get returns the object stored under key
	Get(ctx context.Context, key string) ([]byte, error)

	// Copy duplicates srcKey to dstKey. Copying onto an existing key overwrites it.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Exists checks if an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// Name returns the backend type
	Name() string

	// HealthCheck verifies backend is operational
	HealthCheck(ctx context.Context) error
}

// AssetKey builds the storage key of a reference material asset.
func AssetKey(contextID, materialID, fileName string) string {
	name := strings.ReplaceAll(fileName, "/", "_")
	if name == "" {
		name = "asset"
	}
	return fmt.Sprintf("contexts/%s/reference-materials/%s/%s", contextID, materialID, name)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty asset key")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("asset key %q must be relative", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("asset key %q escapes the storage root", key)
		}
	}
	return nil
}

// BackendConstructor creates a new backend instance
type BackendConstructor func(ctx context.Context, cfg Config) (Backend, error)

// Factory creates storage backends based on configuration
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]BackendConstructor
}

// DefaultFactory is the global storage backend factory
var DefaultFactory = NewFactory()

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]BackendConstructor)}
}

// Register adds a new backend type
func (f *Factory) Register(backendType string, constructor BackendConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[strings.ToLower(backendType)] = constructor
}

// Create instantiates the backend named by cfg.Type
func (f *Factory) Create(ctx context.Context, cfg Config) (Backend, error) {
	f.mu.RLock()
	constructor, exists := f.constructors[strings.ToLower(cfg.Type)]
	f.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown storage backend type: %s", cfg.Type)
	}
	return constructor(ctx, cfg)
}

// List returns available backend types
func (f *Factory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New creates a backend through DefaultFactory.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return DefaultFactory.Create(ctx, cfg)
}
