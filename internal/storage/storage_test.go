package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"alcyxob/media-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestS3Driver(t *testing.T, cfg config.S3Config) *S3Driver {
	t.Helper()
	if cfg.Bucket == "" {
		cfg.Bucket = "media"
	}
	if cfg.AccessKeyID == "" {
		cfg.AccessKeyID, cfg.SecretAccessKey = "key", "secret"
	}
	d, err := NewS3Driver(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	return d
}

func TestNewDriverRejectsUnknownName(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.Driver = "ftp"
	cfg.Upload.Dir = t.TempDir()

	_, err := NewDriver(context.Background(), cfg, zap.NewNop().Sugar())
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewDriverSelectsByName(t *testing.T) {
	cfg := config.Config{}
	cfg.Upload.Dir = t.TempDir()
	cfg.S3 = config.S3Config{Bucket: "media", Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s"}

	cfg.Storage.Driver = " Local "
	d, err := NewDriver(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "local", d.Name())

	cfg.Storage.Driver = "s3"
	d, err = NewDriver(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "s3", d.Name())
}

func TestLocalDriverLifecycle(t *testing.T) {
	dir := t.TempDir()
	d, err := NewLocalDriver(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key := "2026-10-16-abc.png"
	path := filepath.Join(dir, key)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	loc, err := d.Upload(ctx, Handle{Key: key, Path: path, ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, Location{Storage: "local", StorageKey: key, URL: "/api/uploads/" + key}, loc)

	rc, err := d.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	require.NoError(t, d.Delete(ctx, key))
	require.NoError(t, d.Delete(ctx, key), "deleting twice is not an error")

	_, err = d.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalDriverUploadMissingFile(t *testing.T) {
	d, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)
	_, err = d.Upload(context.Background(), Handle{Key: "nope.jpg"})
	assert.Error(t, err)
}

func TestLocalDriverRefusesTraversal(t *testing.T) {
	d, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)

	_, err = d.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Error(t, d.Delete(context.Background(), "../outside"))
}

func TestS3PublicURLForKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{
			name: "public base url wins",
			cfg: config.S3Config{
				PublicBaseURL: "https://cdn.example.com/media/",
				R2PublicHash:  "abc123",
				Region:        "eu-west-1",
			},
			want: "https://cdn.example.com/media/private/a%20b.jpg",
		},
		{
			name: "r2 public bucket",
			cfg:  config.S3Config{R2AccountID: "acct", R2PublicHash: "abc123"},
			want: "https://pub-abc123.r2.dev/private/a%20b.jpg",
		},
		{
			name: "path style endpoint",
			cfg:  config.S3Config{Endpoint: "http://minio:9000/", ForcePathStyle: true, Region: "us-east-1"},
			want: "http://minio:9000/media/private/a%20b.jpg",
		},
		{
			name: "virtual host endpoint",
			cfg:  config.S3Config{Endpoint: "https://nyc3.digitaloceanspaces.com", Region: "nyc3"},
			want: "https://media.nyc3.digitaloceanspaces.com/private/a%20b.jpg",
		},
		{
			name: "aws default",
			cfg:  config.S3Config{Region: "eu-west-1"},
			want: "https://media.s3.eu-west-1.amazonaws.com/private/a%20b.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestS3Driver(t, tt.cfg)
			assert.Equal(t, tt.want, d.PublicURLForKey("private/a b.jpg"))
		})
	}
}

func TestDriverParity(t *testing.T) {
	local, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)
	remote := newTestS3Driver(t, config.S3Config{Region: "us-east-1"})

	h := Handle{Key: "2026-10-16-x.jpg", ContentType: "image/jpeg"}
	l := local.Describe(h)
	r := remote.Describe(h)

	assert.Equal(t, l.StorageKey, r.StorageKey)
	assert.Equal(t, "local", l.Storage)
	assert.Equal(t, "s3", r.Storage)
	assert.Equal(t, local.PublicURLForKey(h.Key), l.URL)
	assert.Equal(t, remote.PublicURLForKey(h.Key), r.URL)
	assert.NotEqual(t, l.URL, r.URL)
}
