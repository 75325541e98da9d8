package watcher

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/malezjaa/palladin/internal/errors"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]ChangeEvent
	notify  chan struct{}
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{notify: make(chan struct{}, 16)}
}

func (r *batchRecorder) handle(events []ChangeEvent) error {
	r.mu.Lock()
	r.batches = append(r.batches, events)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *batchRecorder) wait(t *testing.T, timeout time.Duration) []ChangeEvent {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change batch")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestWatcher(t *testing.T) (*FileWatcher, *batchRecorder, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0755))

	filter := NewChangeFilter()
	require.NoError(t, filter.AddIgnoredPath(filepath.Join(root, "dist")))

	fw, err := New(filter, 60*time.Millisecond, 2*time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })

	rec := newBatchRecorder()
	fw.AddHandler(rec.handle)

	require.NoError(t, fw.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fw.Start(ctx)

	return fw, rec, root
}

func TestWatcherDeliversAcceptedWrite(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	path := filepath.Join(root, "src", "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("let x = 1"), 0644))

	batch := rec.wait(t, 3*time.Second)
	require.NotEmpty(t, batch)
	assert.Equal(t, path, batch[0].Path)
}

func TestWatcherIgnoresBuildDirWrites(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "out.js"), []byte("bundle"), 0644))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, rec.count(), "build dir writes must not reach handlers")
}

func TestWatcherIgnoresTempFiles(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", ".app.ts.swp"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts~"), []byte("x"), 0644))

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestWatcherReportsDeletion(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	path := filepath.Join(root, "src", "util.ts")
	require.NoError(t, os.WriteFile(path, []byte("export {}"), 0644))
	rec.wait(t, 3*time.Second)

	require.NoError(t, os.Remove(path))

	batch := rec.wait(t, 3*time.Second)
	found := false
	for _, event := range batch {
		if event.Path == path && event.Type == EventTypeDeleted {
			found = true
		}
	}
	assert.True(t, found, "expected a deleted event for %s, got %v", path, batch)
}

func TestWatcherBurstYieldsSingleBatch(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "src", "file"+string(rune('a'+i))+".ts")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0644))
	}

	batch := rec.wait(t, 3*time.Second)
	assert.GreaterOrEqual(t, len(batch), 1)

	// Quiet period has passed; no trailing batches for the same burst.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	_, rec, root := newTestWatcher(t)

	nested := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0755))

	// Give the watcher a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(nested, "Button.tsx")
	require.NoError(t, os.WriteFile(path, []byte("export {}"), 0644))

	batch := rec.wait(t, 3*time.Second)
	found := false
	for _, event := range batch {
		if event.Path == path {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWatcherPrunesRemovedDirectories(t *testing.T) {
	fw, _, root := newTestWatcher(t)

	nested := filepath.Join(root, "src", "components")
	deeper := filepath.Join(nested, "forms")
	require.NoError(t, os.MkdirAll(deeper, 0755))

	assert.Eventually(t, func() bool {
		paths := fw.WatchedPaths()
		return contains(paths, nested) && contains(paths, deeper)
	}, 3*time.Second, 50*time.Millisecond, "new directories should join the watch set")

	require.NoError(t, os.RemoveAll(nested))

	assert.Eventually(t, func() bool {
		paths := fw.WatchedPaths()
		return !contains(paths, nested) && !contains(paths, deeper)
	}, 3*time.Second, 50*time.Millisecond, "removed directories should leave the watch set")

	assert.Contains(t, fw.WatchedPaths(), filepath.Join(root, "src"))
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	fw, err := New(NewChangeFilter(), 30*time.Millisecond, time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })
	require.NoError(t, fw.Watch(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSurfacesClosedEventStream(t *testing.T) {
	fw, err := New(NewChangeFilter(), 30*time.Millisecond, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Watch(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	// The stream dying while the context is still live is a failure the
	// caller must see.
	require.NoError(t, fw.Stop())

	select {
	case runErr := <-done:
		require.Error(t, runErr)
		var werr *pkgerrors.WatcherError
		assert.True(t, stderrors.As(runErr, &werr))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	fw, _, _ := newTestWatcher(t)

	require.NoError(t, fw.Stop())
	require.NoError(t, fw.Stop())
}

func TestWatchedPaths(t *testing.T) {
	fw, _, root := newTestWatcher(t)

	paths := fw.WatchedPaths()
	assert.Contains(t, paths, root)
	assert.Contains(t, paths, filepath.Join(root, "src"))

	// Ignored directories are never watched.
	assert.NotContains(t, paths, filepath.Join(root, "dist"))
}
