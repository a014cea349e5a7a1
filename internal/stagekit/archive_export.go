package stagekit

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

// ArchiveExportOptions configures an ArchiveExportStage.
type ArchiveExportOptions struct {
	ID         string
	SourceDir  string
	OutputPath string
	Logger     ports.Logger
}

// ArchiveExportStage packages SourceDir into a gzip-compressed tarball at
// OutputPath. It is registered under PhaseExport, the last stage before
// PhaseFinal in most build manifests.
type ArchiveExportStage struct {
	pipelinepkg.BaseStage
	opts ArchiveExportOptions
}

// NewArchiveExportStage constructs an ArchiveExportStage.
func NewArchiveExportStage(opts ArchiveExportOptions) *ArchiveExportStage {
	return &ArchiveExportStage{
		BaseStage: pipelinepkg.NewBaseStage(pipelinepkg.PhaseExport),
		opts:      opts,
	}
}

// Query implements pipeline.Stage: complete once OutputPath exists.
func (s *ArchiveExportStage) Query(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.opts.OutputPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, stagekiterrors.NewExecutionError(s.opts.ID, err)
}

// Build implements pipeline.Stage, writing the tarball.
func (s *ArchiveExportStage) Build(ctx context.Context) error {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(ctx, "exporting archive", "stage", s.opts.ID, "source", s.opts.SourceDir, "output", s.opts.OutputPath)
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.OutputPath), 0o755); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}

	out, err := os.Create(s.opts.OutputPath)
	if err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(s.opts.SourceDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.opts.SourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}

	if err := tw.Close(); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	if err := gz.Close(); err != nil {
		return stagekiterrors.NewExecutionError(s.opts.ID, err)
	}
	return nil
}

// Clean implements pipeline.Stage, removing the produced archive.
func (s *ArchiveExportStage) Clean(ctx context.Context) error {
	return removePath(s.opts.OutputPath)
}

// Purge implements pipeline.Stage, identical to Clean for an export
// stage: nothing beyond the archive itself belongs to it.
func (s *ArchiveExportStage) Purge(ctx context.Context) error {
	return removePath(s.opts.OutputPath)
}

var _ pipelinepkg.Stage = (*ArchiveExportStage)(nil)
