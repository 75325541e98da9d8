// Package rebuild owns the state machine that turns change batches
// into transform engine invocations. At most one build is ever in
// flight; batches arriving during a build are merged into the next
// cycle instead of being dropped.
package rebuild

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/malezjaa/palladin/internal/cache"
	"github.com/malezjaa/palladin/internal/chunks"
	"github.com/malezjaa/palladin/internal/engine"
	"github.com/malezjaa/palladin/internal/logging"
	"github.com/malezjaa/palladin/internal/watcher"
)

// State is the coordinator's rebuild state.
type State int32

const (
	StateIdle State = iota
	StateRebuilding
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Result describes the outcome of one rebuild cycle. Err is set when
// the engine failed; the previous chunk generation stays installed in
// that case.
type Result struct {
	Changed    []string
	Deleted    []string
	FullReload bool
	Timestamp  time.Time
	Err        error
}

// Coordinator serializes rebuilds over a non-reentrant engine and
// applies their output to the content cache and chunk store.
type Coordinator struct {
	engine     engine.TransformEngine
	cache      *cache.ContentCache
	chunks     *chunks.Store
	entrypoint string
	logger     logging.Logger

	state atomic.Int32

	mu     sync.Mutex
	queued map[string]watcher.ChangeEvent
}

// New creates a coordinator building entrypoint through eng.
func New(eng engine.TransformEngine, contentCache *cache.ContentCache, chunkStore *chunks.Store, entrypoint string, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Coordinator{
		engine:     eng,
		cache:      contentCache,
		chunks:     chunkStore,
		entrypoint: entrypoint,
		logger:     logger.WithComponent("rebuild"),
		queued:     make(map[string]watcher.ChangeEvent),
	}
}

// State returns the current rebuild state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Rebuild submits a change batch. If no build is in flight, the calling
// goroutine runs rebuild cycles until the queue is empty and returns
// one Result per cycle. If a build is already running, the batch is
// merged into its next cycle and Rebuild returns immediately with no
// results.
func (c *Coordinator) Rebuild(ctx context.Context, events []watcher.ChangeEvent) []Result {
	if len(events) > 0 {
		c.enqueue(events)
	}

	var results []Result
	for {
		if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRebuilding)) {
			// Another goroutine owns the build loop; it will drain the
			// queue we just fed.
			return results
		}

		for {
			batch := c.drainQueue()
			if len(batch) == 0 {
				break
			}
			results = append(results, c.runCycle(ctx, batch))
		}

		c.state.Store(int32(StateIdle))

		// Events may have slipped in between the final drain and the
		// transition back to idle; loop so they are not stranded.
		if c.queueEmpty() {
			return results
		}
	}
}

func (c *Coordinator) enqueue(events []watcher.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range events {
		if existing, ok := c.queued[event.Path]; ok && existing.Type == watcher.EventTypeDeleted {
			continue
		}
		c.queued[event.Path] = event
	}
}

func (c *Coordinator) drainQueue() []watcher.ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queued) == 0 {
		return nil
	}
	batch := make([]watcher.ChangeEvent, 0, len(c.queued))
	for _, event := range c.queued {
		batch = append(batch, event)
	}
	c.queued = make(map[string]watcher.ChangeEvent)
	return batch
}

func (c *Coordinator) queueEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued) == 0
}

// runCycle performs one build for a non-empty batch.
func (c *Coordinator) runCycle(ctx context.Context, batch []watcher.ChangeEvent) Result {
	result := Result{Timestamp: time.Now()}

	for _, event := range batch {
		result.Changed = append(result.Changed, event.Path)
		if event.Type == watcher.EventTypeDeleted {
			result.Deleted = append(result.Deleted, event.Path)
		}
	}
	result.FullReload = len(result.Deleted) > 0

	// Deleted files leave the cache immediately; there is nothing valid
	// to serve for them regardless of how the build goes.
	for _, path := range result.Deleted {
		c.cache.Remove(path)
	}

	buildResult, err := c.engine.Build(ctx, c.entrypoint)
	if err != nil {
		// Previous cache entries and chunk generation stay installed:
		// stale-but-working beats broken.
		c.logger.Error(ctx, err, "rebuild failed", "changed", len(batch))
		result.Err = err
		return result
	}

	for _, event := range batch {
		if event.Type != watcher.EventTypeDeleted {
			c.cache.Invalidate(event.Path)
		}
	}

	generation := make(map[string][]byte, len(buildResult.Assets))
	for _, asset := range buildResult.Assets {
		generation[asset.Name] = asset.Content
	}
	c.chunks.ReplaceGeneration(generation)

	for _, warning := range buildResult.Warnings {
		c.logger.Warn(ctx, nil, "build warning", "warning", warning)
	}

	c.logger.Info(ctx, "rebuild finished",
		"changed", len(batch),
		"chunks", len(generation),
		"full_reload", result.FullReload,
	)

	return result
}
