package sheet

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports external changes to the cached sheets, debounced so a
// burst of writes results in one reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   func(path string) bool
	onChange func(ctx context.Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// WatchCache starts watching the cache directory. onChange runs on the watcher
// goroutine after the debounce interval has passed without further changes.
// Writes made by the cache itself are ignored.
func WatchCache(cache *FileCache, debounce time.Duration, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	return newWatcher(cache.Dir(), debounce, cache.WroteRecently, onChange, logger)
}

func newWatcher(dir string, debounce time.Duration, ignore func(string) bool, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		ignore:   ignore,
		onChange: onChange,
		logger:   logger.With(slog.String("component", "sheet-watcher")),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isSheetFile(event.Name) {
				continue
			}
			if w.ignore != nil && w.ignore(event.Name) {
				continue
			}
			w.logger.Debug("cached sheet changed", slog.String("path", event.Name))
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		case <-timer.C:
			w.onChange(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func isSheetFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "xiv_bgm_") && strings.EqualFold(filepath.Ext(base), ".csv")
}
