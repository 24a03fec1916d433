package session

import (
	"context"
	"errors"
	"net/url"
	"path"

	"sandgate/internal/common/storage"
	appErr "sandgate/pkg/errors"
)

// ObjectBackend stores snapshots in an S3 compatible bucket.
type ObjectBackend struct {
	store  storage.ObjectStorage
	bucket string
	prefix string
}

func NewObjectBackend(store storage.ObjectStorage, bucket, prefix string) *ObjectBackend {
	if prefix == "" {
		prefix = "sessions"
	}
	return &ObjectBackend{store: store, bucket: bucket, prefix: prefix}
}

func (b *ObjectBackend) objectKey(key string) string {
	return path.Join(b.prefix, url.QueryEscape(key)+".json")
}

func (b *ObjectBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.store.GetObject(ctx, b.bucket, b.objectKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFound(key)
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "load session %q failed", key)
	}
	return data, nil
}

func (b *ObjectBackend) Store(ctx context.Context, key string, data []byte) error {
	if err := b.store.PutObject(ctx, b.bucket, b.objectKey(key), data, "application/json"); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store session %q failed", key)
	}
	return nil
}

func (b *ObjectBackend) Delete(ctx context.Context, key string) error {
	if err := b.store.RemoveObject(ctx, b.bucket, b.objectKey(key)); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "delete session %q failed", key)
	}
	return nil
}
