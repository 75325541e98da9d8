// Package assets models the files the dev server tracks: a small
// closed set of asset kinds, a content hash, and the per-file cache
// entry that pairs original bytes with their transformed form.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Kind classifies a tracked file by what the server does with it.
type Kind int

const (
	KindCSS Kind = iota
	KindJS
	KindJSX
	KindTS
	KindTSX
	KindHTML
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindJS:
		return "js"
	case KindJSX:
		return "jsx"
	case KindTS:
		return "ts"
	case KindTSX:
		return "tsx"
	case KindHTML:
		return "html"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type file responses of this kind carry.
func (k Kind) ContentType() string {
	switch k {
	case KindCSS:
		return "text/css"
	case KindHTML:
		return "text/html"
	default:
		return "application/javascript"
	}
}

// PassThrough reports whether this kind is served without a per-file
// transform. CSS and HTML bypass the engine at this layer.
func (k Kind) PassThrough() bool {
	return k == KindCSS || k == KindHTML
}

// Classify maps a path to its asset kind by extension, case-insensitive.
// Unknown or missing extensions default to the script kind, which is
// the common case for served files.
func Classify(path string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "css":
		return KindCSS
	case "jsx":
		return KindJSX
	case "ts":
		return KindTS
	case "tsx":
		return KindTSX
	case "html", "htm":
		return KindHTML
	default:
		return KindJS
	}
}

// ContentHash returns the hex-encoded SHA-256 digest of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// TrackedFile is one entry of the content cache. Hash always reflects
// the most recently read Original; Transformed is only trusted while
// Hash matches the file on disk.
type TrackedFile struct {
	Path        string
	Kind        Kind
	Hash        string
	Original    []byte
	Transformed []byte
}

// Clone returns a deep copy. The cache hands out clones so callers
// never hold a live reference into the locked store.
func (f *TrackedFile) Clone() *TrackedFile {
	clone := &TrackedFile{
		Path: f.Path,
		Kind: f.Kind,
		Hash: f.Hash,
	}
	if f.Original != nil {
		clone.Original = make([]byte, len(f.Original))
		copy(clone.Original, f.Original)
	}
	if f.Transformed != nil {
		clone.Transformed = make([]byte, len(f.Transformed))
		copy(clone.Transformed, f.Transformed)
	}
	return clone
}
