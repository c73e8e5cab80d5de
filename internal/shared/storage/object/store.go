package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	// Save stores the reader contents under the analysis namespace with a
	// random name prefix and returns the storage key.
	Save(ctx context.Context, analysisID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// SaveWithKey stores the reader contents at an exact storage key,
	// overwriting any previous object at that key.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	// Open retrieves a stored object for reading.
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
