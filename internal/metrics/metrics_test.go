package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RecordStored("media", "local", "image", 2048)
	r.RecordStored("media", "local", "image", 1024)
	r.RecordRejection("base64", "type_limit")
	r.RecordRateLimited("private")
	r.RecordPrivateRead("forbidden")
	r.ObserveBatch("media", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.uploads.WithLabelValues("media", "image")))
	assert.Equal(t, 3072.0, testutil.ToFloat64(r.uploadBytes.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("base64", "type_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimited.WithLabelValues("private")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.privateReads.WithLabelValues("forbidden")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordStored("media", "s3", "video", 1)
	r.RecordRejection("media", "size_limit")
	r.RecordRateLimited("media")
	r.RecordPrivateRead("ok")
	r.ObserveBatch("media", time.Second)
}

func TestRecordersOnOneRegistryShareSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewRecorder(reg)
	require.NoError(t, err)
	b, err := NewRecorder(reg)
	require.NoError(t, err)

	b.RecordRateLimited("media")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.rateLimited.WithLabelValues("media")))
}
