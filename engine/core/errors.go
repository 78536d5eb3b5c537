package core

import (
	"errors"
)

// Asset pipeline error taxonomy. Callers should match with errors.Is;
// wrapped variants carry the underlying cause.
var (
	// ErrUnsupportedFormat indicates no loader is registered for the
	// requested mesh format.
	ErrUnsupportedFormat = errors.New("unsupported mesh format")
	// ErrNoMeshFound indicates a source parsed cleanly but contained no
	// usable geometry.
	ErrNoMeshFound = errors.New("no mesh found in source")
	// ErrLoadingFailed wraps I/O or decode failures from a loader.
	ErrLoadingFailed = errors.New("mesh loading failed")
	// ErrInvalidFormat indicates malformed source data, e.g. a face
	// directive with fewer than three vertex references.
	ErrInvalidFormat = errors.New("invalid mesh format")
	// ErrInvalidLODLevel indicates a LOD level outside [1, maxLODLevel).
	ErrInvalidLODLevel = errors.New("invalid LOD level")
	// ErrFileNotFound indicates the source path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrPipelineClosed is returned to waiters whose in-flight load was
	// cancelled by an explicit cache clear or shutdown.
	ErrPipelineClosed = errors.New("mesh pipeline cleared or closed")
)
