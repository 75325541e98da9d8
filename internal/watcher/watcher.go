// Package watcher turns raw filesystem notifications into coalesced,
// filtered change batches. Events flow from fsnotify through the
// ChangeFilter and Aggregator to the registered handlers.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/malezjaa/palladin/internal/errors"
	"github.com/malezjaa/palladin/internal/logging"
)

// EventType represents the kind of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent is one filtered filesystem change.
type ChangeEvent struct {
	Path string
	Type EventType
}

// ChangeHandler consumes a coalesced batch of change events.
type ChangeHandler func(events []ChangeEvent) error

// FileWatcher watches directory trees and delivers debounced change
// batches to its handlers.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	filter  *ChangeFilter
	agg     *Aggregator
	logger  logging.Logger

	mu       sync.RWMutex
	handlers []ChangeHandler
	watched  map[string]struct{}

	stopOnce sync.Once
}

// New creates a file watcher. The filter decides which events survive;
// quiet and maxDelay tune the debounce.
func New(filter *ChangeFilter, quiet, maxDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &errors.WatcherError{Err: err}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &FileWatcher{
		watcher: fsw,
		filter:  filter,
		agg:     NewAggregator(quiet, maxDelay),
		logger:  logger.WithComponent("watcher"),
		watched: make(map[string]struct{}),
	}, nil
}

// Filter returns the watcher's change filter.
func (fw *FileWatcher) Filter() *ChangeFilter {
	return fw.filter
}

// AddHandler registers a handler for coalesced change batches.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mu.Lock()
	fw.handlers = append(fw.handlers, handler)
	fw.mu.Unlock()
}

// Watch adds root and every subdirectory to the watch set. Directories
// under an ignored root are skipped entirely.
func (fw *FileWatcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &errors.WatcherError{Path: path, Err: err}
		}
		if !d.IsDir() {
			return nil
		}
		if fw.filter.isIgnored(path) {
			return filepath.SkipDir
		}
		return fw.addDir(path)
	})
}

func (fw *FileWatcher) addDir(path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, ok := fw.watched[path]; ok {
		return nil
	}
	if err := fw.watcher.Add(path); err != nil {
		return &errors.WatcherError{Path: path, Err: err}
	}
	fw.watched[path] = struct{}{}
	return nil
}

// forgetDir drops path and everything under it from the watch set and
// reports whether path itself was a watched directory.
func (fw *FileWatcher) forgetDir(path string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, ok := fw.watched[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range fw.watched {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(fw.watched, dir)
		}
	}
	return true
}

// WatchedPaths returns the currently watched directories.
func (fw *FileWatcher) WatchedPaths() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	paths := make([]string, 0, len(fw.watched))
	for path := range fw.watched {
		paths = append(paths, path)
	}
	return paths
}

// Run drives the event, aggregation, and dispatch loops until ctx is
// cancelled or the underlying watcher is closed. A closed event stream
// while ctx is still live is surfaced as a WatcherError so the caller
// knows change detection is gone.
func (fw *FileWatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fw.agg.Run(ctx)
		return nil
	})
	g.Go(func() error {
		// The event stream ending takes the whole group down with it.
		defer cancel()
		return fw.watchLoop(ctx)
	})
	g.Go(func() error {
		fw.dispatchLoop(ctx)
		return nil
	})
	return g.Wait()
}

// Start launches Run in the background for callers that do not care
// about the loops' lifetime.
func (fw *FileWatcher) Start(ctx context.Context) {
	go func() {
		if err := fw.Run(ctx); err != nil {
			fw.logger.Error(ctx, err, "watcher stopped")
		}
	}()
}

// Stop closes the underlying watcher. Safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fw.closedErr(ctx)
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fw.closedErr(ctx)
			}
			// A single-path failure mid-run is logged, not fatal.
			fw.logger.Warn(ctx, err, "watch error")
		}
	}
}

// closedErr distinguishes an orderly Stop during shutdown from the
// event stream dying underneath a live context.
func (fw *FileWatcher) closedErr(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	return &errors.WatcherError{Err: fmt.Errorf("event stream closed")}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	// A removed or renamed directory leaves the watch set along with its
	// whole subtree; fsnotify drops the underlying watches itself.
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		if fw.forgetDir(event.Name) {
			return
		}
	}

	// New directories join the watch set so nested creates keep arriving.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !fw.filter.isIgnored(event.Name) {
				if err := fw.addDir(event.Name); err != nil {
					fw.logger.Warn(ctx, err, "failed to watch new directory", "path", event.Name)
				}
			}
			return
		}
	}

	if !fw.filter.Accepts(event.Name) {
		return
	}

	var eventType EventType
	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		eventType = EventTypeDeleted
	case event.Op.Has(fsnotify.Create):
		eventType = EventTypeCreated
	default:
		eventType = EventTypeModified
	}

	fw.logger.Debug(ctx, "file changed", "path", event.Name, "type", eventType.String())
	fw.agg.Add(ChangeEvent{Path: event.Name, Type: eventType})
}

func (fw *FileWatcher) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-fw.agg.Batches():
			fw.mu.RLock()
			handlers := fw.handlers
			fw.mu.RUnlock()

			for _, handler := range handlers {
				if err := handler(batch); err != nil {
					fw.logger.Error(ctx, err, "change handler failed")
				}
			}
		}
	}
}
