package port

import (
	"context"
	"io"
	"time"
)

// ObjectStorage keeps the original uploaded files. The bucket is fixed when
// the implementation is constructed, so callers deal only in keys.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
