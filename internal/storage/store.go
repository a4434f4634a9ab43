// Package storage abstracts the two logical object buckets: long-retained
// documents and short-retained subject photos.
package storage

import (
	"context"
	"time"
)

// ObjectStore is interface-driven to keep the pipelines testable and to allow
// swapping the in-memory fake for the MinIO-backed store without rewiring
// business code.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// PresignPut issues a direct-upload URL so image bytes never transit
	// this service.
	PresignPut(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
