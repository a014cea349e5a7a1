// Package pty provides terminal-adjacent helpers for wiring a PTY
// descriptor into a pipeline Progress: it never allocates a PTY itself
// (the spec treats the fd as an opaque value supplied by the caller), it
// only answers "is this actually a terminal" and "how big is it."
package pty

import (
	"golang.org/x/term"
)

// IsTerminal reports whether fd refers to a terminal. CLI entry points use
// this to decide whether attaching the process's own stdout as the
// pipeline's PTY fd is meaningful, versus falling back to plain output
// capture when stdout has been redirected to a file or pipe.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// Size returns the terminal width and height for fd. It is meaningful
// only when IsTerminal(fd) is true.
func Size(fd int) (width, height int, err error) {
	return term.GetSize(fd)
}
