package importer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig holds watcher tuning knobs.
type WatcherConfig struct {
	// DebounceInterval is how long a file must stay quiet before it is
	// ingested. This batches editors and sync tools that write in chunks.
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultWatcherConfig returns sensible defaults.
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[import] ", log.LstdFlags),
	}
}

// Watcher observes a drop directory and ingests JSON files after they
// settle.
type Watcher struct {
	importer *Importer
	dir      string
	config   *WatcherConfig

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher over the given drop directory. The
// directory is created if missing.
func NewWatcher(importer *Importer, dir string, config *WatcherConfig) (*Watcher, error) {
	if config == nil {
		config = DefaultWatcherConfig()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create drop directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch drop directory %s: %w", dir, err)
	}

	return &Watcher{
		importer: importer,
		dir:      dir,
		config:   config,
		watcher:  fsw,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run processes events until the context is cancelled. Files already in
// the directory at startup are ingested first, so records dropped while
// the process was down are not lost.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.importer.IngestDir(ctx, w.dir); err != nil {
		w.config.Logger.Printf("initial ingest pass reported errors: %v", err)
	}

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if path, ok := w.relevant(event); ok {
				w.mu.Lock()
				w.pending[path] = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Printf("watch error: %v", err)

		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// relevant filters events down to settled-candidate JSON files.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if !strings.HasSuffix(event.Name, ".json") {
		return "", false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if filepath.Dir(event.Name) != w.dir {
		return "", false
	}
	return event.Name, true
}

// processPending ingests every queued file that has stayed quiet for a
// full debounce interval.
func (w *Watcher) processPending(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, queuedAt := range w.pending {
		if now.Sub(queuedAt) >= w.config.DebounceInterval {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue // removed before we got to it
		}
		if err := w.importer.IngestFile(ctx, path); err != nil {
			w.config.Logger.Printf("failed to ingest %s: %v", filepath.Base(path), err)
		}
	}
}
