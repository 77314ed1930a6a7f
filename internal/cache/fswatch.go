package cache

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// InvalidationWatch watches the cache's plugins/ tree for external
// modification (another process rewriting a version directory mid-session)
// and drops any in-memory "known good" markers so the next Ensure re-checks
// completeness from disk rather than trusting a stale assumption. This
// addresses the cross-session Open Question noted in SPEC_FULL.md §9.
type InvalidationWatch struct {
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	seen    map[string]struct{}
	log     *slog.Logger
}

// NewInvalidationWatch starts watching root (normally <cache-root>/plugins)
// for writes. It is safe to ignore the error and operate without a watch;
// the artifact cache's own completeness marker remains authoritative either way.
func NewInvalidationWatch(root string, log *slog.Logger) (*InvalidationWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}
	iv := &InvalidationWatch{watcher: w, seen: make(map[string]struct{}), log: log}
	go iv.run()
	return iv, nil
}

func (iv *InvalidationWatch) run() {
	for {
		select {
		case ev, ok := <-iv.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				iv.mu.Lock()
				for p := range iv.seen {
					if ev.Name == p || strings.HasPrefix(ev.Name, p+string(filepath.Separator)) {
						delete(iv.seen, p)
					}
				}
				iv.mu.Unlock()
				if iv.log != nil {
					iv.log.Debug("cache path invalidated by external write", "path", ev.Name, "op", ev.Op.String())
				}
			}
		case err, ok := <-iv.watcher.Errors:
			if !ok {
				return
			}
			if iv.log != nil {
				iv.log.Warn("cache watch error", "err", err)
			}
		}
	}
}

// Track adds path to the underlying fsnotify watch, so external writes,
// removes, or renames under it surface as invalidation events. fsnotify does
// not watch recursively, so callers add each plugin version directory they
// want to trust individually rather than relying on the root watch alone.
func (iv *InvalidationWatch) Track(path string) error {
	return iv.watcher.Add(path)
}

// MarkGood records path as externally-unmodified-since-check.
func (iv *InvalidationWatch) MarkGood(path string) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.seen[path] = struct{}{}
}

// IsMarkedGood reports whether path is still trusted (no external write
// observed since the last MarkGood).
func (iv *InvalidationWatch) IsMarkedGood(path string) bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	_, ok := iv.seen[path]
	return ok
}

// Close stops the watch.
func (iv *InvalidationWatch) Close() error { return iv.watcher.Close() }
