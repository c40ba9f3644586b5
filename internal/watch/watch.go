// Package watch republishes a note whenever it is saved.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notepress/internal/checksum"
)

// DefaultDebounce collapses the burst of events an editor produces per save.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc is called once per settled content change.
type ChangeFunc func(ctx context.Context) error

type options struct {
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures Watch.
type Option func(*options)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Watch observes the note at path until ctx is cancelled. The parent
// directory is watched so editors that save by renaming a temp file are
// followed. onChange runs only when the content checksum differs from the
// last one seen; the content present at start counts as seen. Errors from
// onChange are logged and do not stop the watcher.
func Watch(ctx context.Context, path string, onChange ChangeFunc, opts ...Option) error {
	o := options{debounce: DefaultDebounce, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	last, err := checksum.File(target)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watch: started", slog.String("path", target))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(o.debounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(o.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-fire:
			sum, err := checksum.File(target)
			if err != nil {
				// Mid-rename or deleted; a later Create reschedules.
				logger.Debug("watch: note unreadable", slog.String("error", err.Error()))
				continue
			}
			if sum == last {
				logger.Debug("watch: content unchanged", slog.String("path", target))
				continue
			}
			last = sum
			logger.Info("watch: note changed", slog.String("path", target))
			if err := onChange(ctx); err != nil {
				logger.Error("watch: republish failed", slog.String("path", target), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}
