// Package metrics exposes Prometheus metrics for backup runs.
//
// Metrics:
//   - ec2backup_images_created_total: Images created and tagged
//   - ec2backup_images_deleted_total: Expired images deregistered
//   - ec2backup_snapshots_deleted_total: Snapshots deleted after their image
//   - ec2backup_operation_failures_total: Failed operations by class
//   - ec2backup_runs_total: Completed runs by result
//   - ec2backup_run_duration_seconds: Run duration
//   - ec2backup_last_success_timestamp_seconds: Unix time of the last clean run
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ec2backup"

// Recorder records workflow events on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	imagesCreated    prometheus.Counter
	imagesDeleted    prometheus.Counter
	snapshotsDeleted prometheus.Counter
	failures         *prometheus.CounterVec
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	lastSuccess      prometheus.Gauge
}

// New creates a Recorder and registers its metrics, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		imagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_created_total",
			Help:      "Total number of images created and tagged",
		}),
		imagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_deleted_total",
			Help:      "Total number of expired images deregistered",
		}),
		snapshotsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_deleted_total",
			Help:      "Total number of snapshots deleted",
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_failures_total",
				Help:      "Total number of failed operations by class",
			},
			[]string{"operation"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of completed runs by result",
			},
			[]string{"result"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of backup runs in seconds",
			// Image waits dominate; runs range from seconds to about an hour
			Buckets: prometheus.ExponentialBuckets(1, 2, 13), // 1s to ~68m
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error",
		}),
	}

	r.registry.MustRegister(
		r.imagesCreated,
		r.imagesDeleted,
		r.snapshotsDeleted,
		r.failures,
		r.runs,
		r.runDuration,
		r.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ImageCreated counts one created image.
func (r *Recorder) ImageCreated() {
	r.imagesCreated.Inc()
}

// ImageDeleted counts one deregistered image.
func (r *Recorder) ImageDeleted() {
	r.imagesDeleted.Inc()
}

// SnapshotDeleted counts one deleted snapshot.
func (r *Recorder) SnapshotDeleted() {
	r.snapshotsDeleted.Inc()
}

// OperationFailed counts one failure of an operation class.
func (r *Recorder) OperationFailed(operation string) {
	r.failures.WithLabelValues(operation).Inc()
}

// RunFinished records the outcome of a run.
func (r *Recorder) RunFinished(duration time.Duration, err error) {
	r.runDuration.Observe(duration.Seconds())
	if err != nil {
		r.runs.WithLabelValues("failure").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.lastSuccess.SetToCurrentTime()
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
