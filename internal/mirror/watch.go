package mirror

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/texflow/internal/projectservice"
	"github.com/starford/texflow/internal/storage"
)

// DefaultDebounce is the quiet period before a watcher-driven sync.
const DefaultDebounce = 300 * time.Millisecond

// Watch starts an fsnotify watcher on the provider root and runs a debounced
// Sync after relevant changes until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Editors
// that save through rename or delete-and-recreate produce bursts of events;
// the debounce folds each burst into a single pass.
func Watch(ctx context.Context, svc *projectservice.Service, fsys storage.Provider, projectID string, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := fsys.Dir()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.String("project", projectID))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(debounce)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			st, err := Sync(ctx, svc, fsys, projectID, logger)
			if err != nil {
				logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: synced",
				slog.Int("created", st.Created),
				slog.Int("updated", st.Updated),
				slog.Int("deleted", st.Deleted))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					scheduleSync()
					continue
				}
			}

			if relevant(ev) {
				scheduleSync()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev may change the set or content of source files.
// Removes and renames of directories carry no extension, so they count too.
func relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if storage.IsSource(name) {
		return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
	}
	return filepath.Ext(name) == "" && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
