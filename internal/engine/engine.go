// Package engine defines the transform engine contract the serving
// core builds against. The engine is an external collaborator: the
// core only assumes it can bundle an entrypoint into named assets and
// optionally transform single files, and that it is NOT safe to invoke
// concurrently for overlapping builds.
package engine

import "context"

// BuildAsset is one artifact produced by a bundle run.
type BuildAsset struct {
	Name    string
	Content []byte
}

// BuildResult is the output of one successful bundle run.
type BuildResult struct {
	Assets   []BuildAsset
	Warnings []string
}

// TransformEngine converts source files into servable output.
//
// Build bundles the entrypoint and returns the full set of output
// assets. Transform converts a single file's content for pass-through
// serving. Implementations are not reentrant: callers must serialize
// Build invocations. After Close, all operations return
// errors.ErrEngineClosed; a second Close is a no-op.
type TransformEngine interface {
	Build(ctx context.Context, entrypoint string) (*BuildResult, error)
	Transform(path string, content []byte) ([]byte, error)
	Close() error
}
