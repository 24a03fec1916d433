package session

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	appErr "sandgate/pkg/errors"
)

// FileBackend stores one file per session under dir.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, appErr.InvalidParam("session.dir", "is required for the file backend")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create session dir %s failed", dir)
	}
	return &FileBackend{dir: dir}, nil
}

// path escapes the key so "telegram:123" or keys with '/' stay one file.
func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, url.QueryEscape(key)+".json")
}

func (b *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(key)
		}
		return nil, appErr.Wrapf(err, appErr.StorageError, "read session %q failed", key)
	}
	return data, nil
}

// Store writes to a temp file and renames it over the target.
func (b *FileBackend) Store(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, ".session-*")
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create temp session file failed")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return appErr.Wrapf(err, appErr.StorageError, "write session %q failed", key)
	}
	if err := tmp.Close(); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "close session %q failed", key)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "rename session %q failed", key)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErr.Wrapf(err, appErr.StorageError, "delete session %q failed", key)
	}
	return nil
}
