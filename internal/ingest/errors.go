package ingest

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Error kinds carried by SourceError. Match with errors.Is.
var (
	ErrSourceUnavailable = eris.New("source unavailable")
	ErrSourceFormat      = eris.New("source format")
)

// SourceError reports a failure to load one of the four input datasets.
type SourceError struct {
	Source Source
	Path   string
	Kind   error // ErrSourceUnavailable or ErrSourceFormat
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ingest: %s source %q: %s: %v", e.Source, e.Path, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error { return e.Err }

// Is matches the error kind so errors.Is(err, ErrSourceFormat) works through wrapping.
func (e *SourceError) Is(target error) bool { return target == e.Kind }

func unavailable(src Source, path string, err error) error {
	return &SourceError{Source: src, Path: path, Kind: ErrSourceUnavailable, Err: err}
}

func badFormat(src Source, path string, err error) error {
	return &SourceError{Source: src, Path: path, Kind: ErrSourceFormat, Err: err}
}
