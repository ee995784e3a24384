package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/consultation-extract/constants"
)

const defaultDebounce = 2 * time.Second

type WatchConfig struct {
	Root     string
	Options  Options
	Debounce time.Duration // coalesce rapid write/rename bursts
}

// Watch reports batches of changed input documents. A batch is emitted once no
// relevant event has arrived for Debounce. Both channels close when ctx ends.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan []string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	filter := NewFSDiscoverer(cfg.Options, logger)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}
	addErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != cfg.Root && (!cfg.Options.Recursive || IsHidden(path)) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if addErr != nil {
		logger.Error("ingest.watch.add_failed", "root", cfg.Root, "error", addErr)
		_ = w.Close()
		return nil, nil, addErr
	}

	evCh := make(chan []string)
	errCh := make(chan error, 1)
	relevant := func(e fsnotify.Event) bool {
		if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) {
			return false
		}
		name := filepath.Base(e.Name)
		if IsHidden(name) || constants.IsOfficeLockFile(name) {
			return false
		}
		return filter.allowed(name)
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_error", "error", err)
			}
		}(w)

		var (
			timer   *time.Timer
			timerC  <-chan time.Time
			pending = map[string]struct{}{}
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) && cfg.Options.Recursive {
					// new subdirectories are watched too; Add fails harmlessly for files
					_ = w.Add(e.Name)
				}
				if !relevant(e) {
					continue
				}
				pending[e.Name] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				batch := make([]string, 0, len(pending))
				for p := range pending {
					batch = append(batch, p)
				}
				clear(pending)
				sort.Strings(batch)
				logger.Info("ingest.watch.changed", "files", len(batch))
				select {
				case evCh <- batch:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
