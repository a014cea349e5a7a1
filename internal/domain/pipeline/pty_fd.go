package pipeline

import "syscall"

// ptyWrite writes msg to fd as a single, unbuffered write, exactly as the
// original implementation's foundry_build_progress_print does with a raw
// write(2) call: no line buffering, no ANSI interpretation. The fd is not
// closed or otherwise owned by this call — a Progress may print many
// times over its lifetime.
func ptyWrite(fd int, msg string) (int, error) {
	b := []byte(msg)
	total := 0
	for total < len(b) {
		n, err := syscall.Write(fd, b[total:])
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return total, newBrokenPipe(err)
		}
		if n == 0 {
			return total, newBrokenPipe(syscall.EPIPE)
		}
		total += n
	}
	return total, nil
}

// ptyDup duplicates fd, returning a new descriptor the caller owns and
// must close. Used when fanning a single PTY fd out to a subprocess's
// stdin/stdout/stderr, each as an independent descriptor.
func ptyDup(fd int) (int, error) {
	return syscall.Dup(fd)
}

// ptyClose closes fd, the Progress's own duplicated copy of an attached
// PTY. It does not touch the fd the caller passed in to begin with.
func ptyClose(fd int) error {
	return syscall.Close(fd)
}
