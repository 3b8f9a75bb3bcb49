package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the snapshot service metrics on Prometheus.
type Recorder struct {
	snapshotReads    *prometheus.CounterVec
	snapshotWrites   *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	refreshJobsTotal *prometheus.CounterVec
}

// New registers the collectors on reg. Nil means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		snapshotReads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsnap_snapshot_reads_total",
				Help: "Snapshot reads by kind and outcome (hit, stale, miss, not_found)",
			},
			[]string{"kind", "outcome"},
		),
		snapshotWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsnap_snapshot_writes_total",
				Help: "Snapshot rows appended to storage",
			},
			[]string{"kind"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsnap_provider_duration_seconds",
				Help:    "Latency of calls to data providers",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsnap_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		refreshJobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsnap_refresh_jobs_total",
				Help: "Refresh jobs executed by type and result",
			},
			[]string{"type", "result"},
		),
	}
}

func (r *Recorder) RecordSnapshotRead(kind, outcome string) {
	r.snapshotReads.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) RecordSnapshotWrite(kind string) {
	r.snapshotWrites.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordProviderLatency(provider string, d time.Duration) {
	r.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordRefreshJob(jobType, result string) {
	r.refreshJobsTotal.WithLabelValues(jobType, result).Inc()
}

// Nop discards everything. Useful in tests.
type Nop struct{}

func (Nop) RecordSnapshotRead(string, string)           {}
func (Nop) RecordSnapshotWrite(string)                  {}
func (Nop) RecordProviderLatency(string, time.Duration) {}
func (Nop) RecordError(string)                          {}
func (Nop) RecordRefreshJob(string, string)             {}
