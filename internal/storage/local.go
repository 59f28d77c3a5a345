package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"alcyxob/media-service/internal/domain"
)

// LocalDriver keeps uploads in the upload directory. Files are already in
// place when Upload is called, so Upload only confirms they exist.
type LocalDriver struct {
	dir string
}

// NewLocalDriver creates the upload directory if needed.
func NewLocalDriver(dir string) (*LocalDriver, error) {
	if dir == "" {
		return nil, errors.New("local storage requires an upload directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalDriver{dir: dir}, nil
}

func (d *LocalDriver) Name() string { return domain.StorageLocal }

func (d *LocalDriver) Describe(h Handle) Location {
	return Location{Storage: domain.StorageLocal, StorageKey: h.Key, URL: d.PublicURLForKey(h.Key)}
}

func (d *LocalDriver) Upload(_ context.Context, h Handle) (Location, error) {
	path, err := d.path(h.Key)
	if err != nil {
		return Location{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return Location{}, fmt.Errorf("stat stored file %q: %w", h.Key, err)
	}
	return d.Describe(h), nil
}

func (d *LocalDriver) PublicURLForKey(key string) string {
	return LocalURLPrefix + escapeKey(key)
}

func (d *LocalDriver) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, ErrObjectNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (d *LocalDriver) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// path resolves a key inside the upload directory, refusing escapes.
func (d *LocalDriver) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(d.dir, rel), nil
}
