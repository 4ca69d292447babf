package core

import (
	"context"
	"io"
	"time"
)

type (
	// StoredObject describes a file kept in object storage.
	StoredObject struct {
		Key        string
		Size       int64
		UploadedAt time.Time
	}

	// FileStorage is any service that can keep submission files.
	FileStorage interface {
		// Upload stores the content of r under key and returns the object URL.
		Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
		// Download writes the content stored under key to w.
		Download(ctx context.Context, key string, w io.Writer) error
		Delete(ctx context.Context, key string) error
		// List returns the objects whose key starts with prefix.
		List(ctx context.Context, prefix string) ([]StoredObject, error)
	}
)
