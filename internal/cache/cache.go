// Package cache holds the content-addressed in-memory store of served
// files. Reads are the hot path (every HTTP request), writes happen on
// first access and when a file changes on disk, so one reader-writer
// lock over the whole store is enough.
package cache

import (
	"os"
	"sync"
	"unicode/utf8"

	"github.com/malezjaa/palladin/internal/assets"
	"github.com/malezjaa/palladin/internal/engine"
	"github.com/malezjaa/palladin/internal/errors"
	"github.com/malezjaa/palladin/internal/logging"
)

// ContentCache owns every TrackedFile. Callers only ever receive
// clones, never a live reference into the store.
type ContentCache struct {
	mu     sync.RWMutex
	files  map[string]*assets.TrackedFile
	engine engine.TransformEngine
	logger logging.Logger
}

// New creates an empty cache backed by the given engine for per-file
// transforms.
func New(eng engine.TransformEngine, logger logging.Logger) *ContentCache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ContentCache{
		files:  make(map[string]*assets.TrackedFile),
		engine: eng,
		logger: logger.WithComponent("cache"),
	}
}

// GetOrLoad returns the tracked file for path, reading and transforming
// it if the cache has no entry or the on-disk content hash changed.
// Errors are not cached; the next request retries.
func (c *ContentCache) GetOrLoad(path string) (*assets.TrackedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewIOError("read", path, err)
	}

	hash := assets.ContentHash(content)

	c.mu.RLock()
	entry, ok := c.files[path]
	if ok && entry.Hash == hash {
		clone := entry.Clone()
		c.mu.RUnlock()
		return clone, nil
	}
	c.mu.RUnlock()

	kind := assets.Classify(path)
	transformed := content
	if !kind.PassThrough() {
		// The transform path treats content as source text; binary junk
		// with a script extension is rejected before it reaches the
		// engine.
		if !utf8.Valid(content) {
			return nil, &errors.EncodingError{Path: path, Err: errors.ErrInvalidUTF8}
		}
		transformed, err = c.engine.Transform(path, content)
		if err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have loaded the same revision meanwhile; the
	// stored transform wins so repeated reads stay byte-identical.
	if entry, ok := c.files[path]; ok && entry.Hash == hash {
		return entry.Clone(), nil
	}

	entry = &assets.TrackedFile{
		Path:        path,
		Kind:        kind,
		Hash:        hash,
		Original:    content,
		Transformed: transformed,
	}
	c.files[path] = entry

	return entry.Clone(), nil
}

// Peek returns the cached entry without touching the disk, or false if
// path has never been loaded.
func (c *ContentCache) Peek(path string) (*assets.TrackedFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.files[path]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Invalidate drops the entry for path so the next request reloads and
// re-transforms it.
func (c *ContentCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}

// Remove drops the entry for a deleted file.
func (c *ContentCache) Remove(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}

// Clear empties the whole store.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	c.files = make(map[string]*assets.TrackedFile)
	c.mu.Unlock()
}

// Len returns the number of tracked files.
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
