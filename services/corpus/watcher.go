// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the corpus store when its source file changes on disk.
//
// Editors and config-management tools typically replace files via rename,
// so the watcher observes the parent directory and filters events down to
// the corpus path. The reload itself is the store's atomic snapshot swap;
// in-flight requests keep the snapshot they already hold.
type Watcher struct {
	store   *Store
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the store's corpus file.
//
// # Outputs
//
//   - *Watcher: ready to Start. Nil (with nil error) when the store has no
//     file-backed source, in which case there is nothing to watch.
//   - error: non-nil if the underlying fsnotify watcher cannot be created.
func NewWatcher(store *Store) (*Watcher, error) {
	if store.path == "" {
		return nil, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{store: store, path: store.path, watcher: fsw}, nil
}

// Start begins watching for corpus changes. Blocks until the context is
// cancelled; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch corpus directory", "dir", dir, "error", err)
		return
	}
	slog.Info("Watching corpus source for changes", "path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Corpus watcher error", "error", err)

		case <-ctx.Done():
			slog.Debug("Corpus watcher stopping")
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	slog.Info("Corpus source changed on disk, reloading", "path", w.path)
	w.store.Reload()
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
