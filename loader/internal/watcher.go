package internal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"docsum/types"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay unmodified before it is reported.
const DefaultSettle = 2 * time.Second

// Watcher reports source files created or rewritten in a directory.
type Watcher struct {
	dir    string
	settle time.Duration
	logger *slog.Logger
}

func NewWatcher(dir string, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, settle: settle, logger: logger}
}

// Watch sends the path of every settled source file to fileChan until ctx is
// cancelled. Sidecars and hidden files are ignored.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("[WATCH] start monitoring folder", "dir", w.dir)
	defer w.logger.Info("[WATCH] file watcher stopped")

	// timers are touched only by this goroutine; they signal back through ready
	pending := make(map[string]*time.Timer)
	ready := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !Relevant(ev) {
				continue
			}
			name := ev.Name
			if t, ok := pending[name]; ok {
				t.Reset(w.settle)
				continue
			}
			w.logger.Info("[WATCH] new file detected", "file", name)
			pending[name] = time.AfterFunc(w.settle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(pending, name)
			select {
			case fileChan <- name:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("[WATCH] watcher error", "error", err)
		}
	}
}

// Relevant reports whether ev is a create or write of a source file.
func Relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return types.IsSource(base)
}
