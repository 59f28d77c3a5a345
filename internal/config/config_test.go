package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("UPLOAD_DIR", "/var/media")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("IMAGE_PROCESSING_ENABLED", "yes")
	t.Setenv("S3_BUCKET", "assets")
	t.Setenv("S3_FORCE_PATH_STYLE", "true")
	t.Setenv("S3_R2_PUBLIC_HASH", "abc")
	t.Setenv("APP_ENV", "Production")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/var/media", cfg.Upload.Dir)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.True(t, cfg.ImageProcessing.Enabled)
	assert.Equal(t, "assets", cfg.S3.Bucket)
	assert.True(t, cfg.S3.ForcePathStyle)
	assert.Equal(t, "abc", cfg.S3.R2PublicHash)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadConfigDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "jwt:\n  secret: from-file\nstorage:\n  driver: local\nratelimit:\n  store: redis\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.False(t, cfg.ImageProcessing.Enabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestParseBoolish(t *testing.T) {
	for _, in := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, ParseBoolish(in), in)
	}
	for _, in := range []string{"", "0", "false", "off", "nope"} {
		assert.False(t, ParseBoolish(in), in)
	}
}
