package ports

import "context"

// FileSystem is the narrow filesystem collaborator the pipeline core
// depends on for the handful of operations it performs directly (as
// opposed to operations a Stage performs on its own behalf). Keeping this
// narrow, rather than handing the domain an *os.File-shaped interface,
// keeps the domain package testable without touching a real disk.
type FileSystem interface {
	// MkdirWithParents creates dir and any missing parents, matching the
	// semantics of os.MkdirAll, with the given permission bits applied to
	// newly created directories.
	MkdirWithParents(ctx context.Context, dir string, perm uint32) error

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)
}
