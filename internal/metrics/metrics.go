package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "media_service"

// Recorder exports ingestion telemetry. A nil *Recorder records nothing.
type Recorder struct {
	uploads       *prometheus.CounterVec
	uploadBytes   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	privateReads  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// NewRecorder registers the service metrics on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_stored_total",
			Help:      "Accepted files by upload surface and kind.",
		}, []string{"surface", "kind"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes persisted through the storage driver.",
		}, []string{"storage"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected requests by surface and error kind.",
		}, []string{"surface", "kind"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter.",
		}, []string{"class"}),
		privateReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "private_reads_total",
			Help:      "Private retrieval attempts by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent validating and storing one upload request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"surface"}),
	}

	var err error
	if r.uploads, err = register(reg, r.uploads); err != nil {
		return nil, err
	}
	if r.uploadBytes, err = register(reg, r.uploadBytes); err != nil {
		return nil, err
	}
	if r.rejections, err = register(reg, r.rejections); err != nil {
		return nil, err
	}
	if r.rateLimited, err = register(reg, r.rateLimited); err != nil {
		return nil, err
	}
	if r.privateReads, err = register(reg, r.privateReads); err != nil {
		return nil, err
	}
	if r.batchDuration, err = register(reg, r.batchDuration); err != nil {
		return nil, err
	}
	return r, nil
}

// register returns the already registered collector when an identical one
// exists, so two recorders on one registry share series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register media metric: %w", err)
	}
	return c, nil
}

// RecordStored counts one accepted file.
func (r *Recorder) RecordStored(surface, storage, kind string, size int64) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(surface, kind).Inc()
	r.uploadBytes.WithLabelValues(storage).Add(float64(size))
}

// RecordRejection counts a failed request.
func (r *Recorder) RecordRejection(surface, kind string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(surface, kind).Inc()
}

func (r *Recorder) RecordRateLimited(class string) {
	if r == nil {
		return
	}
	r.rateLimited.WithLabelValues(class).Inc()
}

func (r *Recorder) RecordPrivateRead(outcome string) {
	if r == nil {
		return
	}
	r.privateReads.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveBatch(surface string, d time.Duration) {
	if r == nil {
		return
	}
	r.batchDuration.WithLabelValues(surface).Observe(d.Seconds())
}
