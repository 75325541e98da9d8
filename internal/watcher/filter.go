package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// defaultExtensions is the allow-list of watched file extensions.
var defaultExtensions = []string{
	// JavaScript/TypeScript
	"js", "jsx", "ts", "tsx", "mjs", "cjs",
	// Styles
	"css", "scss", "sass", "less", "styl", "stylus", "pcss", "postcss",
	// Vue/Svelte
	"vue", "svelte",
	// HTML
	"html", "htm",
	// JSON
	"json", "json5",
	// Images
	"png", "jpg", "jpeg", "gif", "svg", "webp", "avif", "ico",
	// Fonts
	"woff", "woff2", "ttf", "otf", "eot",
	// Other assets
	"webm", "mp4", "mp3", "wav", "ogg", "pdf", "txt", "md",
}

// ChangeFilter decides whether a raw filesystem event is relevant.
// Checks run in order: temp/backup name patterns, ignored roots
// (canonical prefix match), then the extension allow-list.
type ChangeFilter struct {
	mu          sync.RWMutex
	allowedExts map[string]struct{}
	ignored     []string
}

// NewChangeFilter creates a filter with the default extension
// allow-list and no ignored paths.
func NewChangeFilter() *ChangeFilter {
	exts := make(map[string]struct{}, len(defaultExtensions))
	for _, ext := range defaultExtensions {
		exts[ext] = struct{}{}
	}
	return &ChangeFilter{allowedExts: exts}
}

// Accepts reports whether an event for path should reach the
// aggregator.
func (f *ChangeFilter) Accepts(path string) bool {
	if isTemporaryFile(filepath.Base(path)) {
		return false
	}
	if f.isIgnored(path) {
		return false
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.allowedExts[ext]
	return ok
}

// AddIgnoredPath registers a directory whose events are discarded. The
// path is canonicalized so build directories reached through symlinks
// or relative paths still match. Nonexistent paths are skipped.
func (f *ChangeFilter) AddIgnoredPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	canonical, err := canonicalize(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.ignored {
		if existing == canonical {
			return nil
		}
	}
	f.ignored = append(f.ignored, canonical)
	return nil
}

// IgnoredPaths returns the canonical ignored roots.
func (f *ChangeFilter) IgnoredPaths() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.ignored))
	copy(out, f.ignored)
	return out
}

// AddExtension adds an extension to the allow-list. A leading dot is
// stripped and matching is case-insensitive.
func (f *ChangeFilter) AddExtension(ext string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return
	}
	f.mu.Lock()
	f.allowedExts[ext] = struct{}{}
	f.mu.Unlock()
}

// RemoveExtension removes an extension from the allow-list.
func (f *ChangeFilter) RemoveExtension(ext string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	f.mu.Lock()
	delete(f.allowedExts, ext)
	f.mu.Unlock()
}

// ClearExtensions empties the allow-list; every extension is rejected
// until extensions are added back.
func (f *ChangeFilter) ClearExtensions() {
	f.mu.Lock()
	f.allowedExts = make(map[string]struct{})
	f.mu.Unlock()
}

func (f *ChangeFilter) isIgnored(path string) bool {
	canonical, err := canonicalize(path)
	if err != nil {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ignored := range f.ignored {
		if canonical == ignored || strings.HasPrefix(canonical, ignored+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// canonicalize resolves symlinks where possible. Deleted files cannot
// be resolved directly, so their parent directory is resolved instead.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
		return filepath.Join(resolved, base), nil
	}

	return abs, nil
}

// isTemporaryFile reports whether a filename matches an editor
// temp/backup pattern.
func isTemporaryFile(name string) bool {
	// Editor backup files
	if strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".swo") ||
		strings.HasSuffix(name, ".swx") {
		return true
	}

	// Emacs auto-save files
	if strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#") {
		return true
	}

	// Temporary files
	if strings.HasPrefix(name, ".~") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".temp") {
		return true
	}

	// Hidden temporary files
	if strings.HasPrefix(name, ".") && (strings.Contains(name, ".swp") || strings.Contains(name, ".tmp")) {
		return true
	}

	// JetBrains scratch markers
	if strings.HasPrefix(name, "___") ||
		strings.HasSuffix(name, "___jb_tmp___") ||
		strings.HasSuffix(name, "___jb_old___") {
		return true
	}

	// Backup files
	return strings.HasSuffix(name, ".bak") || strings.HasSuffix(name, ".backup")
}
