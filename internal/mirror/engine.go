package mirror

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/schaermu/gemmirror/internal/gemtext"
)

// Engine mirrors an input tree into an output tree, converting Gemtext
// documents to HTML and copying everything else.
type Engine struct {
	fs       afero.Fs
	workers  int
	logger   *slog.Logger
	progress *Progress
}

// NewEngine creates a new mirror engine. A workers value below one uses
// runtime.NumCPU(); a nil progress keeps the engine silent.
func NewEngine(fsys afero.Fs, workers int, logger *slog.Logger, progress *Progress) *Engine {
	return &Engine{
		fs:       fsys,
		workers:  workers,
		logger:   logger,
		progress: progress,
	}
}

// run carries the state of a single Run invocation
type run struct {
	*Engine
	logger *slog.Logger
	pool   *Pool[Entry]
	stats  counters
}

type counters struct {
	dirsCreated, dirsExisting, parsed, copied, skipped, ignored, failed atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		DirsCreated:  c.dirsCreated.Load(),
		DirsExisting: c.dirsExisting.Load(),
		Parsed:       c.parsed.Load(),
		Copied:       c.copied.Load(),
		Skipped:      c.skipped.Load(),
		Ignored:      c.ignored.Load(),
		Failed:       c.failed.Load(),
	}
}

// Run mirrors seed and returns once every entry reachable from it has been
// processed. Failures on individual entries are logged and counted but do
// not make Run fail; only an unusable seed does.
func (e *Engine) Run(seed Entry) (Stats, error) {
	if _, err := e.fs.Stat(seed.Input); err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if !filepath.IsAbs(seed.Output) {
		return Stats{}, fmt.Errorf("%w: output path must be absolute: %s", ErrInvalidSeed, seed.Output)
	}

	r := &run{
		Engine: e,
		logger: e.logger.With("run_id", uuid.NewString()),
	}
	r.pool = NewPool(e.workers, r.logger, r.handle)
	defer r.pool.Close()

	r.logger.Debug("starting mirror",
		"input", seed.Input,
		"output", seed.Output,
		"workers", r.pool.Size())

	r.pool.Submit(seed)
	r.pool.Wait()

	stats := r.stats.snapshot()
	r.logger.Debug("mirror finished",
		"dirs_created", stats.DirsCreated,
		"parsed", stats.Parsed,
		"copied", stats.Copied,
		"skipped", stats.Skipped,
		"ignored", stats.Ignored,
		"failed", stats.Failed)

	return stats, nil
}

// handle dispatches one entry. Every error stops at this boundary.
func (r *run) handle(entry Entry) {
	err := r.process(entry)
	if err == nil {
		return
	}

	r.stats.failed.Add(1)
	var entryErr *EntryError
	if errors.As(err, &entryErr) {
		r.logger.Error("entry failed", "op", entryErr.Op, "path", entryErr.Path, "error", entryErr.Err)
		return
	}
	r.logger.Error("entry failed", "path", entry.Input, "error", err)
}

func (r *run) process(entry Entry) error {
	kind, err := entry.Kind(r.fs)
	if err != nil {
		return &EntryError{Op: "stat", Path: entry.Input, Err: err}
	}

	switch kind {
	case KindDirectory:
		return r.handleDirectory(entry)
	case KindRegular:
		return r.handleFile(entry)
	default:
		r.stats.ignored.Add(1)
		r.logger.Debug("ignoring entry", "path", entry.Input)
		return nil
	}
}

// handleDirectory creates the mirrored directory and submits its children.
// The directory exists before any child is queued.
func (r *run) handleDirectory(dir Entry) error {
	exists, err := afero.Exists(r.fs, dir.Output)
	if err != nil {
		return &EntryError{Op: "stat", Path: dir.Output, Err: err}
	}

	if !exists {
		if err := r.fs.Mkdir(dir.Output, 0755); err != nil {
			return &EntryError{Op: "mkdir", Path: dir.Output, Err: err}
		}
		r.stats.dirsCreated.Add(1)
		r.progress.createdDir(dir.Output)
	} else {
		r.stats.dirsExisting.Add(1)
		r.progress.existingDir(dir.Output)
	}

	children, err := afero.ReadDir(r.fs, dir.Input)
	if err != nil {
		return &EntryError{Op: "readdir", Path: dir.Input, Err: err}
	}

	for _, info := range children {
		child := dir.Child(info.Name())

		// ReadDir reports links unresolved; classify by what they point to.
		kind := kindOf(info.Mode())
		if info.Mode()&os.ModeSymlink != 0 {
			if kind, err = child.Kind(r.fs); err != nil {
				kind = KindOther
			}
		}

		if kind == KindOther {
			r.stats.ignored.Add(1)
			r.logger.Debug("skipping entry", "path", child.Input)
			continue
		}
		r.pool.Submit(child)
	}

	return nil
}

// handleFile converts Gemtext, copies new files and leaves existing
// non-Gemtext destinations untouched.
func (r *run) handleFile(file Entry) error {
	if gemtext.IsGemtext(file.Input) {
		out := gemtext.HTMLPath(file.Output)
		if err := r.convertFile(file.Input, out); err != nil {
			return err
		}
		r.stats.parsed.Add(1)
		r.progress.parsed(file.Input, out)
		return nil
	}

	exists, err := afero.Exists(r.fs, file.Output)
	if err != nil {
		return &EntryError{Op: "stat", Path: file.Output, Err: err}
	}
	if exists {
		r.stats.skipped.Add(1)
		r.progress.skipped(file.Output)
		return nil
	}

	if err := r.copyFile(file.Input, file.Output); err != nil {
		return &EntryError{Op: "copy", Path: file.Input, Err: err}
	}
	r.stats.copied.Add(1)
	r.progress.copied(file.Input, file.Output)
	return nil
}

// convertFile renders src into dst, truncating any previous rendition.
func (r *run) convertFile(src, dst string) error {
	in, err := r.fs.Open(src)
	if err != nil {
		return &EntryError{Op: "open", Path: src, Err: err}
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := r.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &EntryError{Op: "create", Path: dst, Err: err}
	}

	if err := gemtext.Convert(in, out); err != nil {
		_ = out.Close()
		return &EntryError{Op: "parse", Path: src, Err: err}
	}

	if err := out.Close(); err != nil {
		return &EntryError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// copyFile copies a file from src to dst with atomic write
func (r *run) copyFile(src, dst string) error {
	// Open source
	srcFile, err := r.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// Create temp file in destination directory
	tmpFile, err := afero.TempFile(r.fs, filepath.Dir(dst), ".gemmirror-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = r.fs.Remove(tmpPath)
	}() // cleanup on error

	// Copy content
	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	// Get source permissions
	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	// Set permissions on temp file
	if err := r.fs.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	// Atomic rename
	return r.fs.Rename(tmpPath, dst)
}
