package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileNotFoundError(t *testing.T) {
	err := NewFileNotFound("src/app.ts")
	assert.Equal(t, "file not found: src/app.ts", err.Error())
	assert.True(t, IsNotFound(err))
}

func TestIsNotFoundWrapped(t *testing.T) {
	err := fmt.Errorf("serving request: %w", NewFileNotFound("index.html"))
	assert.True(t, IsNotFound(err))

	assert.False(t, IsNotFound(errors.New("other")))
	assert.False(t, IsNotFound(nil))
}

func TestIOErrorUnwrap(t *testing.T) {
	err := NewIOError("read", "main.css", os.ErrPermission)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "main.css")
}

func TestWatcherErrorWithoutPath(t *testing.T) {
	err := &WatcherError{Err: errors.New("inotify limit reached")}
	assert.Equal(t, "watcher error: inotify limit reached", err.Error())

	withPath := &WatcherError{Path: "src", Err: errors.New("denied")}
	assert.Contains(t, withPath.Error(), "src")
}

func TestEncodingError(t *testing.T) {
	err := &EncodingError{Path: "src/logo.ts", Err: ErrInvalidUTF8}
	assert.Equal(t, "encoding error in src/logo.ts: invalid utf-8", err.Error())
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.False(t, IsNotFound(err))
}

func TestBuildErrorMessage(t *testing.T) {
	err := &BuildError{
		Entrypoint: "src/index.tsx",
		Output:     "SyntaxError: unexpected token",
		Err:        errors.New("exit status 1"),
	}
	assert.Contains(t, err.Error(), "src/index.tsx")
	assert.ErrorContains(t, errors.Unwrap(err), "exit status 1")
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", NewFileNotFound("a.js"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("x: %w", NewFileNotFound("a.js")), http.StatusNotFound},
		{"io error", NewIOError("read", "a.js", os.ErrPermission), http.StatusInternalServerError},
		{"encoding error", &EncodingError{Path: "a.ts", Err: ErrInvalidUTF8}, http.StatusInternalServerError},
		{"engine closed", ErrEngineClosed, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestWriteHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, NewFileNotFound("missing.js"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing.js")
}
