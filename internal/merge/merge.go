// Package merge folds repeated API entries of a reflection data file into single
// entries. A type or member defined by more than one documented assembly is written
// once per assembly; the merged entry lists every library and records which libraries
// contribute members that are not common to all of them.
package merge

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
)

// Result counts the merged entries. MergedTypes counts every copy of a merged type,
// MergedMembers counts merged member ids.
type Result struct {
	MergedTypes   int
	MergedMembers int
}

// Merger rewrites reflection data files in place.
type Merger struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New returns a merger working on fs.
func New(fs afero.Fs) *Merger {
	return &Merger{fs: fs, logger: slog.Default()}
}

// WithLogger sets the logger.
func (m *Merger) WithLogger(logger *slog.Logger) *Merger {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Merge folds duplicate API entries of the file at path. A file without duplicates is
// left untouched. Otherwise the merged document is written to a temporary file in the
// same directory, which then replaces the original.
func (m *Merger) Merge(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	dups, found, err := m.scan(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if !found {
		m.logger.Debug("No duplicate API entries", logfields.Path(path))
		return Result{}, nil
	}

	tmp := filepath.Join(filepath.Dir(path), uuid.NewString()+".xml")
	res, err := m.rewriteFile(ctx, path, tmp, dups)
	if err != nil {
		if rmErr := m.fs.Remove(tmp); rmErr != nil {
			m.logger.Debug("Failed to remove temporary merge file", logfields.Path(tmp), logfields.Error(rmErr))
		}
		return Result{}, err
	}

	if err := m.fs.Remove(path); err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to remove unmerged reflection data").
			WithContext("path", path).
			Build()
	}
	if err := m.fs.Rename(tmp, path); err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to replace reflection data").
			WithContext("path", path).
			WithContext("temp", tmp).
			Build()
	}

	m.logger.Info("Merged duplicate API entries",
		logfields.Path(path),
		slog.Int("types", res.MergedTypes),
		slog.Int("members", res.MergedMembers),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return res, nil
}

func (m *Merger) rewriteFile(ctx context.Context, path, tmp string, dups duplicates) (Result, error) {
	in, err := m.fs.Open(path)
	if err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to open reflection data").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = in.Close() }()

	out, err := m.fs.Create(tmp)
	if err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to create temporary merge file").
			WithContext("path", tmp).
			Build()
	}

	res, err := rewrite(ctx, in, out, dups)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = errors.WrapError(closeErr, errors.CategoryFileSystem, "failed to close temporary merge file").
			WithContext("path", tmp).
			Build()
	}
	return res, err
}
