package analyses

import "errors"

var (
	// ErrNotFound is returned when no analysis exists for an id.
	ErrNotFound = errors.New("not found")
	// ErrNoContent is returned at intake when neither a document nor any
	// link text was supplied.
	ErrNoContent = errors.New("no usable content supplied")
	// ErrNoText is returned when aggregation produced no text; it is fatal
	// for the job.
	ErrNoText = errors.New("no text extracted")
)
