package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watcher reloads the YAML file at path whenever it changes on disk and
// delivers the new Config on Changes. It never touches the pipeline
// directly; the caller decides what a change means (BPF filter swap,
// flush interval change, etc. per spec.md §9).
type Watcher struct {
	path    string
	logger  *zap.Logger
	changes chan Config
}

// NewWatcher constructs a Watcher for path. logger may be nil.
func NewWatcher(path string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:    path,
		logger:  logger,
		changes: make(chan Config, 1),
	}
}

// Changes returns the channel new Config values are delivered on. The
// channel is closed when Run returns.
func (w *Watcher) Changes() <-chan Config { return w.changes }

// Run watches path until ctx is canceled. A malformed reload is logged and
// skipped; the last-good Config is left in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(w.path); err != nil {
		return errors.Wrap(err, "watch config file")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous config",
					zap.String("path", w.path), zap.Error(err))
				continue
			}
			select {
			case w.changes <- cfg:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
