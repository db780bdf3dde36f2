// Package storage abstracts the durable object store that holds converted
// audio blobs. The pipeline only ever sees this capability interface; the
// S3 implementation wraps every transport failure into common.ErrStorage so
// SDK error types never cross the package boundary.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the capability the audio pipeline requires of a blob store.
type ObjectStore interface {
	// Put stores the object under key, replacing any previous content.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// Get returns the object's content as a stream. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}
