// Package watch hot-reloads the security policy when an operator edits
// the policy file, so long-running gate processes pick up changes
// without restart.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkravets/txguard/internal/policy"
)

// debounceDefault is the quiet period after the last write before the
// policy file is re-read. Editors fire several events per save.
const debounceDefault = 500 * time.Millisecond

// Reloader watches the policy file and reloads the store on change.
// A bad edit keeps the previous policy active.
type Reloader struct {
	store    *policy.Store
	path     string
	debounce time.Duration
	onReload func(err error)
}

// NewReloader creates a Reloader for the policy file at path.
// onReload, if non-nil, is called after each reload attempt with its
// result.
func NewReloader(store *policy.Store, path string, onReload func(err error)) *Reloader {
	return &Reloader{
		store:    store,
		path:     path,
		debounce: debounceDefault,
		onReload: onReload,
	}
}

// Run watches for changes and reloads. Blocks until ctx is cancelled.
// The parent directory is watched rather than the file itself, so
// atomic rename-into-place saves are observed.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	// Single debounce timer, reset on each event. Initialized as
	// stopped; first event starts it.
	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			err := r.store.Reload()
			if r.onReload != nil {
				r.onReload(err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(r.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if r.onReload != nil {
				r.onReload(fmt.Errorf("watcher: %w", err))
			}
		}
	}
}
