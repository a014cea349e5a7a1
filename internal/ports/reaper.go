package ports

import "context"

// DirectoryReaper batches filesystem removals and executes them
// concurrently, bounded by an internal worker limit. Purge drivers use it
// to remove a build directory (and any files alongside it) in one
// operation rather than issuing removals one at a time.
type DirectoryReaper interface {
	// AddDirectory schedules path for recursive removal. depth limits how
	// many path components below path are also individually scheduled
	// for removal before the recursive delete runs (0 means just path
	// itself); a build-directory purge uses 0.
	AddDirectory(path string, depth int)

	// AddFile schedules path for removal as a single file (used when
	// path may be a build directory alias, e.g. a marker file sitting
	// next to the build directory).
	AddFile(path string, depth int)

	// Execute runs every scheduled removal, bounded by an internal
	// concurrency limit, and returns the first error encountered (if
	// any). Already-absent paths are not an error.
	Execute(ctx context.Context) error
}
