// Watches the data directory for changes made by other processes.

package filegw

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups the events of one external write.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the store whenever a table file is changed by another
// process and then calls fn. Writes made through g are ignored. It returns
// once the watcher is set up; watching stops when ctx is done.
func (g *Gateway) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := g.addWatches(w); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						// A new workspace directory.
						if err := w.Add(event.Name); err != nil {
							slog.WarnContext(ctx, "Failed to watch directory", "dir", event.Name, "err", err)
						}
					}
				}
				if !strings.HasSuffix(event.Name, ".jsonl") {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if !g.changedExternally() {
					continue
				}
				if err := g.Reload(); err != nil {
					slog.WarnContext(ctx, "Failed to reload data directory", "dir", g.dir, "err", err)
					continue
				}
				if err := g.addWatches(w); err != nil {
					slog.WarnContext(ctx, "Failed to watch data directory", "err", err)
				}
				slog.InfoContext(ctx, "Data directory changed, reloaded", "dir", g.dir)
				fn()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching data directory", "err", err)
			}
		}
	}()
	return nil
}

// addWatches watches the data directory and every workspace directory.
func (g *Gateway) addWatches(w *fsnotify.Watcher) error {
	if err := w.Add(g.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", g.dir, err)
	}
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", g.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := w.Add(filepath.Join(g.dir, e.Name())); err != nil {
				return fmt.Errorf("failed to watch %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// changedExternally reports whether a table file differs from the version
// this process last wrote.
func (g *Gateway) changedExternally() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	files := []string{workspacesFile}
	for id := range g.tables {
		files = append(files, id+"/"+pagesFile, id+"/"+blocksFile)
	}
	entries, _ := os.ReadDir(g.dir)
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if _, ok := g.tables[e.Name()]; !ok {
				// Workspace directory this process does not know.
				if _, err := os.Stat(filepath.Join(g.dir, e.Name(), pagesFile)); err == nil {
					return true
				}
			}
		}
	}
	for _, rel := range files {
		fi, err := os.Stat(filepath.Join(g.dir, filepath.FromSlash(rel)))
		st, known := g.stamps[rel]
		switch {
		case err != nil:
			if known {
				return true
			}
		case !known:
			return true
		case !fi.ModTime().Equal(st.mod) || fi.Size() != st.size:
			return true
		}
	}
	return false
}
