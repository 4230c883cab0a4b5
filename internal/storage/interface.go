package storage

import (
	"context"
	"io"
)

// ObjectStorage stores complaint attachments.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// GetURL returns the public URL for key.
	GetURL(key string) string
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
