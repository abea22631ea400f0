// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relgraph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/relgraph/services/relgraph/config"
)

// DefaultReloadDebounce is how long a fixture must stay quiet before it is
// reloaded.
const DefaultReloadDebounce = 200 * time.Millisecond

// FixtureWatcher reloads a memory-backed service whenever its fixture file
// changes on disk.
//
// # Description
//
// The fixture's parent directory is watched rather than the file itself,
// because editors commonly save by writing a temporary file and renaming it
// over the original. Events for other files are ignored. A burst of events
// collapses into one reload once the debounce window passes with no new
// events. A reload that fails to parse is logged and the previous contents
// keep serving.
//
// # Thread Safety
//
// Safe for concurrent use. Reloads run on a single goroutine.
type FixtureWatcher struct {
	svc      *Service
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	// OnReload, when set, is called after every reload attempt.
	OnReload func(err error)

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFixtureWatcher creates a watcher for path. A zero debounce uses
// DefaultReloadDebounce.
func NewFixtureWatcher(svc *Service, path string, debounce time.Duration, logger *slog.Logger) (*FixtureWatcher, error) {
	if svc.Backend() != "" && svc.Backend() != config.BackendMemory {
		return nil, fmt.Errorf("%w: %s", ErrReloadUnsupported, svc.Backend())
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve fixture path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fixture watcher: %w", err)
	}
	return &FixtureWatcher{
		svc:      svc,
		path:     abs,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "relgraph.watch")),
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Watching ends when ctx is cancelled or Stop is
// called.
func (w *FixtureWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching fixture", slog.String("path", w.path))
	return nil
}

// Stop stops watching and waits for a pending reload to finish.
func (w *FixtureWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *FixtureWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fixture watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *FixtureWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *FixtureWatcher) reload(ctx context.Context) {
	_, err := w.svc.Reload(ctx, w.path)
	if err != nil {
		w.logger.Warn("fixture reload failed, keeping previous contents",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
