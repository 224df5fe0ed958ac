// Package storage stages uploaded media between the upload request and the
// submission that sends it to the backend.
package storage

import (
	"context"
	"io"

	"neurolink/internal/media"
)

// Stager keeps uploaded attachments until they are submitted or discarded.
// Stage returns the URI the attachment is later opened with.
type Stager interface {
	media.Opener
	Stage(ctx context.Context, prefix, fileName, contentType string, body io.Reader) (string, error)
	Remove(ctx context.Context, uri string) error
	Scheme() string
}
