package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malezjaa/palladin/internal/errors"
)

func newTestContext(t *testing.T) (*ServeContext, string) {
	t.Helper()
	root := t.TempDir()
	sc, err := NewServeContext(root, "dist")
	require.NoError(t, err)
	return sc, sc.Root()
}

func TestServeContextCreatesBuildDir(t *testing.T) {
	sc, root := newTestContext(t)

	info, err := os.Stat(sc.BuildDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(root, "dist"), sc.BuildDir())
}

func TestResolvePathStaysInsideRoot(t *testing.T) {
	sc, root := newTestContext(t)

	resolved, err := sc.ResolvePath("/src/app.tsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "app.tsx"), resolved)
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	sc, _ := newTestContext(t)

	for _, attempt := range []string{
		"/../etc/passwd",
		"/src/../../etc/passwd",
		"/..%2F..",
	} {
		t.Run(attempt, func(t *testing.T) {
			resolved, err := sc.ResolvePath(attempt)
			if err == nil {
				// Cleaned variants may stay inside the root; that is fine
				// as long as nothing escapes.
				assert.Contains(t, resolved, sc.Root())
				return
			}
			assert.True(t, errors.IsNotFound(err), "traversal must read as not-found, got %v", err)
		})
	}
}

func TestResolvePathRootItself(t *testing.T) {
	sc, root := newTestContext(t)

	resolved, err := sc.ResolvePath("/")
	require.NoError(t, err)
	assert.Equal(t, root, resolved)
}

func TestRelativePath(t *testing.T) {
	sc, root := newTestContext(t)

	rel, ok := sc.RelativePath(filepath.Join(root, "src", "app.tsx"))
	require.True(t, ok)
	assert.Equal(t, "/src/app.tsx", rel)

	_, ok = sc.RelativePath("/somewhere/else.ts")
	assert.False(t, ok)
}

func TestNewServeContextRejectsMissingRoot(t *testing.T) {
	_, err := NewServeContext(filepath.Join(t.TempDir(), "missing"), "dist")
	assert.Error(t, err)
}

func TestNewServeContextResolvesSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	sc, err := NewServeContext(link, "dist")
	require.NoError(t, err)

	resolvedReal, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, resolvedReal, sc.Root())
}
