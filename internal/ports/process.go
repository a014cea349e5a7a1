package ports

import "context"

// ProcessLauncher configures and starts a subprocess on behalf of a stage
// (a compiler invocation, a package manager, a VCS checkout helper). It is
// the narrow collaborator a Stage uses instead of calling os/exec
// directly, so stage kinds stay testable against a fake.
type ProcessLauncher interface {
	// Push appends an argument to the command line, command name first.
	Push(arg string)

	// SetCwd sets the working directory the subprocess starts in.
	SetCwd(dir string)

	// Setenv sets an environment variable for the subprocess, overriding
	// or extending the launcher's inherited environment.
	Setenv(key, value string)

	// PrependPath prepends dir to the subprocess's PATH environment
	// variable.
	PrependPath(dir string)

	// TakeFD assigns fd (which the launcher takes ownership of and will
	// close) to the subprocess's targetFD (0, 1, or 2 for stdin/stdout/
	// stderr). Used to wire a PTY fd into a spawned process.
	TakeFD(fd int, targetFD int)

	// Spawn starts the configured subprocess and returns a handle to it.
	Spawn(ctx context.Context) (Subprocess, error)
}

// Subprocess is a running (or completed) process started by a
// ProcessLauncher.
type Subprocess interface {
	// Wait blocks until the subprocess exits and returns its error, if
	// any (a non-zero exit status surfaces as an error).
	Wait(ctx context.Context) error

	// Kill terminates the subprocess immediately.
	Kill() error

	// CombinedOutput returns stdout and stderr captured while the
	// subprocess ran, trimmed of leading and trailing whitespace. It is meaningful
	// after Wait returns; before that it reflects output seen so far.
	CombinedOutput() string
}
