package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/malezjaa/palladin/internal/errors"
)

// ServeContext pins down the canonical directories requests are
// resolved against. Both paths are absolute with symlinks evaluated,
// so later containment checks compare like with like.
type ServeContext struct {
	root     string
	buildDir string
}

// NewServeContext canonicalizes root and creates buildDir under it if
// missing. buildDir is taken relative to root unless absolute.
func NewServeContext(root, buildDir string) (*ServeContext, error) {
	canonicalRoot, err := canonicalDir(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(canonicalRoot, buildDir)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, &errors.IOError{Op: "mkdir", Path: buildDir, Err: err}
	}
	canonicalBuild, err := canonicalDir(buildDir)
	if err != nil {
		return nil, fmt.Errorf("resolving build dir: %w", err)
	}

	return &ServeContext{root: canonicalRoot, buildDir: canonicalBuild}, nil
}

// Root returns the canonical project root.
func (sc *ServeContext) Root() string {
	return sc.root
}

// BuildDir returns the canonical bundler output directory.
func (sc *ServeContext) BuildDir() string {
	return sc.buildDir
}

// ResolvePath maps a URL path to an absolute filesystem path under
// root. Returns a not-found error when the resolved path escapes the
// root, so traversal attempts are indistinguishable from missing files.
func (sc *ServeContext) ResolvePath(urlPath string) (string, error) {
	cleaned := filepath.FromSlash(strings.TrimPrefix(urlPath, "/"))
	candidate := filepath.Join(sc.root, cleaned)

	resolved, err := filepath.Abs(candidate)
	if err != nil {
		return "", &errors.FileNotFoundError{Path: urlPath}
	}
	if !sc.contains(resolved) {
		return "", &errors.FileNotFoundError{Path: urlPath}
	}
	return resolved, nil
}

// RelativePath converts an absolute path under root into a URL path
// with a leading slash.
func (sc *ServeContext) RelativePath(path string) (string, bool) {
	rel, err := filepath.Rel(sc.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

func (sc *ServeContext) contains(path string) bool {
	if path == sc.root {
		return true
	}
	return strings.HasPrefix(path, sc.root+string(filepath.Separator))
}

func canonicalDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return resolved, nil
}
