// Package blob stores uploaded images in named buckets.
package blob

import (
	"context"
	"time"
)

// CacheControl is set on every stored object.
const CacheControl = "max-age=3600"

// Store is an object store addressed by bucket and key.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context, bucket string) error
}
