// Package vcs provides a go-git-backed checkout helper for the
// DOWNLOADS-phase git-checkout stage kind.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source describes where a DOWNLOADS-phase stage should fetch from and
// where it should land on disk.
type Source struct {
	URL         string
	Destination string
	Branch      string
	Depth       int
}

// Fetcher clones or updates a working tree to match a Source.
type Fetcher struct{}

// NewFetcher constructs a Fetcher. It holds no state; every call is
// self-contained given a Source.
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// NeedsFetch reports whether the destination must be (re)populated: it is
// missing entirely, exists but isn't a git repository, or is a git
// repository whose origin doesn't match src.URL.
func (f *Fetcher) NeedsFetch(src Source) (bool, error) {
	info, err := os.Stat(src.Destination)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("vcs: stat destination: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("vcs: destination %s is not a directory", src.Destination)
	}

	repo, err := git.PlainOpen(src.Destination)
	if err != nil {
		return true, nil
	}

	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return true, nil
	}
	return remote.Config().URLs[0] != src.URL, nil
}

// Fetch clones src.URL into src.Destination. If the destination exists
// but is not a valid clone of src.URL, it is removed first. Fetch is
// idempotent: calling it again against an already-correct destination is
// a cheap no-op via NeedsFetch.
func (f *Fetcher) Fetch(ctx context.Context, src Source) error {
	if src.URL == "" {
		return errors.New("vcs: source URL is required")
	}
	if src.Destination == "" {
		return errors.New("vcs: destination is required")
	}

	dirty, err := f.NeedsFetch(src)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	if _, err := os.Stat(src.Destination); err == nil {
		if err := os.RemoveAll(src.Destination); err != nil {
			return fmt.Errorf("vcs: remove stale destination: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(src.Destination), 0o755); err != nil {
		return fmt.Errorf("vcs: create destination parent: %w", err)
	}

	opts := &git.CloneOptions{URL: src.URL}
	if src.Depth > 0 {
		opts.Depth = src.Depth
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, src.Destination, false, opts); err != nil {
		return fmt.Errorf("vcs: clone %s: %w", src.URL, err)
	}
	return nil
}
