// Package errors defines the error taxonomy shared by the palladin
// serving core. Every error that can cross a package boundary has a
// concrete type here, and the HTTP layer maps each type to a status
// code with HTTPStatus/WriteHTTP.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEngineClosed is returned by any engine operation attempted after
// the engine has been closed. A double close is a no-op, not an error.
var ErrEngineClosed = errors.New("engine is closed")

// FileNotFoundError reports a requested path that is absent or resolves
// outside the project root.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// NewFileNotFound creates a FileNotFoundError for the given path.
func NewFileNotFound(path string) error {
	return &FileNotFoundError{Path: path}
}

// IOError reports a disk read or write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps a low-level I/O failure with its operation and path.
func NewIOError(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// ErrInvalidUTF8 is the cause carried by an EncodingError when a file
// routed through a text transform holds bytes that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid utf-8")

// EncodingError reports non-text content where text was expected.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error in %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// WatcherError reports a change-source setup or runtime failure. Path
// is empty for failures not tied to a single path.
type WatcherError struct {
	Path string
	Err  error
}

func (e *WatcherError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("watcher error: %v", e.Err)
	}
	return fmt.Sprintf("watcher error for %s: %v", e.Path, e.Err)
}

func (e *WatcherError) Unwrap() error { return e.Err }

// BuildError reports a transform engine failure. Output carries the
// engine's raw diagnostic output when available.
type BuildError struct {
	Entrypoint string
	Output     string
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for %s: %v", e.Entrypoint, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a FileNotFoundError.
func IsNotFound(err error) bool {
	var nf *FileNotFoundError
	return errors.As(err, &nf)
}

// HTTPStatus maps an error to the status code its HTTP response should
// carry. Missing files are the only not-found class; everything else is
// a server-side failure.
func HTTPStatus(err error) int {
	if IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// WriteHTTP writes err as a plain-text HTTP error response. Build
// errors are never surfaced here; callers log them and keep serving the
// previous generation.
func WriteHTTP(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), HTTPStatus(err))
}
