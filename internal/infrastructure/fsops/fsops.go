// Package fsops implements ports.FileSystem for the handful of filesystem
// operations the pipeline core performs directly.
package fsops

import (
	"context"
	"os"

	"github.com/foundrybuild/pipeline/internal/ports"
)

// FileSystem is the default ports.FileSystem, backed by the os package.
type FileSystem struct {
	pool chan struct{}
}

// New constructs a FileSystem whose operations are bounded by workers
// concurrent syscalls at a time (workers <= 0 selects 4), matching the
// channel-as-semaphore idiom used elsewhere in this module's
// infrastructure layer.
func New(workers int) *FileSystem {
	if workers <= 0 {
		workers = 4
	}
	return &FileSystem{pool: make(chan struct{}, workers)}
}

// MkdirWithParents implements ports.FileSystem.
func (f *FileSystem) MkdirWithParents(ctx context.Context, dir string, perm uint32) error {
	select {
	case f.pool <- struct{}{}:
		defer func() { <-f.pool }()
	case <-ctx.Done():
		return ctx.Err()
	}
	return os.MkdirAll(dir, os.FileMode(perm))
}

// Exists implements ports.FileSystem.
func (f *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	select {
	case f.pool <- struct{}{}:
		defer func() { <-f.pool }()
	case <-ctx.Done():
		return false, ctx.Err()
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

var _ ports.FileSystem = (*FileSystem)(nil)
