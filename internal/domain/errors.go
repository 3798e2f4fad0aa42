package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
	ErrMalformedResponse  = errors.New("malformed catalog response")
	ErrMalformedEvent     = errors.New("malformed event entry")
	ErrMissingOrigin      = errors.New("event has no origin")
	ErrMissingMagnitude   = errors.New("event has no magnitude value")
	ErrInvalidBounds      = errors.New("invalid map bounds")
	ErrEmptyLayer         = errors.New("map layer has no geometry")
)

// FetchError reports a failed catalog query.
type FetchError struct {
	Catalog string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch events from %s: %v", e.Catalog, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RecordError reports a catalog entry that could not be tabulated.
type RecordError struct {
	Index   int
	EventID string
	Err     error
}

func (e *RecordError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("event %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("event %d (%s): %v", e.Index, e.EventID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// WriteError reports a failed spreadsheet write. It is fatal to a run.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// MapInitError reports that the map could not be set up. It is fatal to a run.
type MapInitError struct {
	Err error
}

func (e *MapInitError) Error() string {
	return fmt.Sprintf("map init: %v", e.Err)
}

func (e *MapInitError) Unwrap() error { return e.Err }
