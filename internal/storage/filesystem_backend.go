package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesystemBackend stores assets as files below a base directory
type FilesystemBackend struct {
	basePath string
}

// NewFilesystemBackend creates a new filesystem storage backend
func NewFilesystemBackend(basePath string) (*FilesystemBackend, error) {
	// Ensure base path exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	return &FilesystemBackend{basePath: basePath}, nil
}

// Name returns the backend type
func (f *FilesystemBackend) Name() string { return "fs" }

// Put writes content to the file for key
func (f *FilesystemBackend) Put(ctx context.Context, key string, content []byte, contentType string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	return f.write(path, content)
}

// Get reads the file for key
func (f *FilesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrAssetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Copy duplicates the file for srcKey to dstKey
func (f *FilesystemBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	data, err := f.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	dst, err := f.path(dstKey)
	if err != nil {
		return err
	}
	return f.write(dst, data)
}

// Exists checks if a file exists for key
func (f *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	path, err := f.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// HealthCheck verifies the filesystem is accessible
func (f *FilesystemBackend) HealthCheck(ctx context.Context) error {
	testFile := filepath.Join(f.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("filesystem not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("filesystem cleanup failed: %w", err)
	}
	return nil
}

func (f *FilesystemBackend) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.basePath, filepath.FromSlash(key)), nil
}

// write replaces the file atomically so a concurrent reader never sees a partial asset.
func (f *FilesystemBackend) write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".asset-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Register the filesystem backend with the factory
func init() {
	DefaultFactory.Register("fs", func(ctx context.Context, cfg Config) (Backend, error) {
		if cfg.BasePath == "" {
			return nil, fmt.Errorf("filesystem backend requires a base path")
		}
		return NewFilesystemBackend(cfg.BasePath)
	})
}
