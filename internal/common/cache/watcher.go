package cache

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Invalidator is anything that can drop its cached state.
type Invalidator interface {
	Invalidate()
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Watcher invalidates caches when files in the watched directories change.
type Watcher struct {
	fsw     *fsnotify.Watcher
	targets []Invalidator
	logger  Logger
	// notify, when set, receives one value per invalidation round.
	notify chan struct{}
}

func NewWatcher(log Logger, dirs []string, targets ...Invalidator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return &Watcher{fsw: fsw, targets: targets, logger: log}, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			for _, t := range w.targets {
				t.Invalidate()
			}
			w.logger.Info("agent config changed, caches invalidated", map[string]interface{}{
				"file": ev.Name,
				"op":   ev.Op.String(),
			})
			if w.notify != nil {
				select {
				case w.notify <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("fs watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}
