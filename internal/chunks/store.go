// Package chunks stores the bundle artifacts of the current build
// generation. The whole generation is replaced atomically after every
// successful build so readers never see chunks from two different
// builds at once.
package chunks

import (
	"path/filepath"
	"strings"
	"sync"
)

// Store is a keyed store of generated chunks. All access is guarded by
// a reader-writer lock; the write path is a single map swap.
type Store struct {
	mu         sync.RWMutex
	generation map[string][]byte
}

// NewStore creates an empty chunk store.
func NewStore() *Store {
	return &Store{generation: make(map[string][]byte)}
}

// ReplaceGeneration installs a new build generation, discarding the
// previous one. The input map is copied so later caller mutations
// cannot leak into the store.
func (s *Store) ReplaceGeneration(chunks map[string][]byte) {
	generation := make(map[string][]byte, len(chunks))
	for name, content := range chunks {
		generation[name] = content
	}

	s.mu.Lock()
	s.generation = generation
	s.mu.Unlock()
}

// Get returns the chunk stored under name, or false if the current
// generation does not contain it.
func (s *Store) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.generation[name]
	return content, ok
}

// Has reports whether the current generation contains name.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.generation[name]
	return ok
}

// Names returns the chunk names of the current generation.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.generation))
	for name := range s.generation {
		names = append(names, name)
	}
	return names
}

// Len returns the number of chunks in the current generation.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.generation)
}

// Clear drops the current generation.
func (s *Store) Clear() {
	s.mu.Lock()
	s.generation = make(map[string][]byte)
	s.mu.Unlock()
}

// IsChunkName reports whether a requested filename follows the hashed
// chunk naming convention: a hyphen in the basename and a .js
// extension. Such requests are checked against the store before any
// per-file loading.
func IsChunkName(name string) bool {
	base := filepath.Base(name)
	return strings.Contains(base, "-") && strings.HasSuffix(base, ".js")
}
