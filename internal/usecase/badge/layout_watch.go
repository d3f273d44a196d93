package badge

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

// WatchLayout hot-reloads the layout profile when the file changes. Editors
// often replace files instead of writing in place, so the watch is on the
// directory and filtered to the target name. Blocks until ctx is done.
func (p *LayoutProvider) WatchLayout(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if p.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create layout watcher")
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return errs.Wrapf(err, "watch layout directory %q", dir)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "badge.layout"))
	logging.Info(logCtx, "layout watch started", slog.String("path", p.path))

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := p.Reload(); err != nil {
				logging.Warn(logCtx, "layout reload failed", slog.Any("err", errs.Loggable(err)))
				continue
			}
			logging.Info(logCtx, "layout reloaded", slog.String("path", p.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "layout watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}
