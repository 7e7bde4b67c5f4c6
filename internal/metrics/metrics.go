// Package metrics exposes Prometheus instrumentation for the archiver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the archives counter.
const (
	OutcomeArchived = "archived"
	OutcomeDedup    = "dedup"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

// Metrics holds the collectors registered for the archiver service.
type Metrics struct {
	Archives       *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	DedupHits      prometheus.Counter
	UploadDuration prometheus.Histogram
}

// New registers the archiver collectors on the given registerer. Pass a
// fresh prometheus.NewRegistry in tests to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Archives: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archiver",
			Name:      "archives_total",
			Help:      "Archive requests by outcome.",
		}, []string{"outcome"}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archiver",
			Name:      "uploads_total",
			Help:      "Provider uploads by delivery mode and status.",
		}, []string{"mode", "status"}),
		DedupHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "archiver",
			Name:      "dedup_hits_total",
			Help:      "Archive requests short-circuited by an existing manifest record.",
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "archiver",
			Name:      "upload_duration_seconds",
			Help:      "Time spent uploading to the provider.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// RecordUpload counts one upload attempt.
func (m *Metrics) RecordUpload(mode string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Uploads.WithLabelValues(mode, status).Inc()
}

// RecordArchive counts one archive request by outcome.
func (m *Metrics) RecordArchive(outcome string) {
	m.Archives.WithLabelValues(outcome).Inc()
}
