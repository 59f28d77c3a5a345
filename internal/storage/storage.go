package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"alcyxob/media-service/internal/config"
	"alcyxob/media-service/internal/domain"

	"go.uber.org/zap"
)

var (
	// ErrUnknownDriver is returned by NewDriver for an unrecognised driver name.
	// Callers treat it as fatal at startup.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// ErrObjectNotFound is returned by Open when the key has no stored object.
	ErrObjectNotFound = errors.New("object not found in storage")
)

// LocalURLPrefix is where locally stored public files are served from.
const LocalURLPrefix = "/api/uploads/"

// Handle points at a file already written to the local upload directory
// under its final storage key.
type Handle struct {
	Key         string
	Path        string
	ContentType string
}

// Location is the result shape shared by every driver.
type Location struct {
	Storage    string `json:"storage"`
	StorageKey string `json:"storage_key"`
	URL        string `json:"url"`
}

// Driver is the capability contract for persisting uploads. Every variant
// implements the full method set.
type Driver interface {
	// Name is the storage value recorded on descriptors ("local" or "s3").
	Name() string

	// Describe reports where a handle will be reachable. It does no I/O.
	Describe(h Handle) Location

	// Upload persists the handle's bytes and returns their location.
	Upload(ctx context.Context, h Handle) (Location, error)

	// PublicURLForKey builds the public URL of a stored key.
	PublicURLForKey(key string) string

	// Open streams a stored object. Returns ErrObjectNotFound when absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// NewDriver selects the driver named in cfg.Storage.Driver.
func NewDriver(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (Driver, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch name {
	case domain.StorageLocal:
		return NewLocalDriver(cfg.Upload.Dir)
	case domain.StorageS3:
		return NewS3Driver(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
	}
}

// escapeKey percent-encodes each path segment of a key.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
