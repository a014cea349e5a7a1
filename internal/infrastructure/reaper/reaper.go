// Package reaper implements ports.DirectoryReaper: batched, concurrency
// bounded filesystem removal, used by a Pipeline's purge driver.
package reaper

import (
	"context"
	"os"
	"sync"

	"github.com/foundrybuild/pipeline/internal/ports"
)

const defaultWorkers = 4

type target struct {
	path string
	dir  bool
}

// Reaper is the default ports.DirectoryReaper. It is not safe for
// concurrent scheduling by multiple goroutines before Execute; a Progress
// uses one per purge run.
type Reaper struct {
	pool    chan struct{}
	targets []target
}

// New constructs a Reaper whose Execute runs at most workers removals
// concurrently, using a buffered channel as a semaphore (the same idiom
// internal/infrastructure/fsops uses). workers <= 0 selects a default of 4.
func New(workers int) *Reaper {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Reaper{pool: make(chan struct{}, workers)}
}

// AddDirectory implements ports.DirectoryReaper. depth is accepted for
// interface compatibility with the source's recursive-siblings behavior
// but is otherwise unused: this implementation always removes path
// recursively in one operation.
func (r *Reaper) AddDirectory(path string, depth int) {
	r.targets = append(r.targets, target{path: path, dir: true})
}

// AddFile implements ports.DirectoryReaper.
func (r *Reaper) AddFile(path string, depth int) {
	r.targets = append(r.targets, target{path: path, dir: false})
}

// Execute implements ports.DirectoryReaper.
func (r *Reaper) Execute(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)

	for _, t := range r.targets {
		t := t

		select {
		case r.pool <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-r.pool }()

			var err error
			if t.dir {
				err = os.RemoveAll(t.path)
			} else {
				err = os.Remove(t.path)
				if os.IsNotExist(err) {
					err = nil
				}
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return firstErr
}

var _ ports.DirectoryReaper = (*Reaper)(nil)
