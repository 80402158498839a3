package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-runs an engine whenever something changes below the seed's
// input directory. It only works on the host filesystem.
type Watcher struct {
	engine   *Engine
	seed     Entry
	debounce time.Duration

	// onRun is called after every completed run. Used by tests.
	onRun func(Stats)
}

// NewWatcher creates a watcher for seed. Changes arriving within debounce
// of each other trigger a single run.
func NewWatcher(engine *Engine, seed Entry, debounce time.Duration) *Watcher {
	return &Watcher{
		engine:   engine,
		seed:     seed,
		debounce: debounce,
	}
}

// Watch performs an initial run and then keeps the output in step with the
// input until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	if err := w.addTree(fw, w.seed.Input); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.seed.Input, err)
	}

	if err := w.runOnce(); err != nil {
		return err
	}

	logger := w.engine.logger
	logger.Debug("watching for changes", "input", w.seed.Input, "debounce", w.debounce)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("watch stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if within(event.Name, w.seed.Output) {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			trigger = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-trigger:
			trigger = nil
			if err := w.runOnce(); err != nil {
				logger.Error("mirror run failed", "error", err)
			}
		}
	}
}

func (w *Watcher) runOnce() error {
	stats, err := w.engine.Run(w.seed)
	if err != nil {
		return err
	}
	if w.onRun != nil {
		w.onRun(stats)
	}
	return nil
}

// addTree registers root and every directory below it
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if within(path, w.seed.Output) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// within reports whether path is dir or lies below it
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
