package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by GetObject for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage stores small whole objects such as session snapshots.
type ObjectStorage interface {
	GetObject(ctx context.Context, bucket, objectKey string) ([]byte, error)
	PutObject(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error
	RemoveObject(ctx context.Context, bucket, objectKey string) error
	EnsureBucket(ctx context.Context, bucket string) error
}
