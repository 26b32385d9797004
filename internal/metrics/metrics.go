package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build and install outcomes used as label values.
const (
	OutcomeBuilt            = "built"
	OutcomeSkipped          = "skipped"
	OutcomeInstalled        = "installed"
	OutcomeAlreadyInstalled = "already_installed"
	OutcomeFailed           = "failed"
)

// Recorder holds the pipeline metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry        *prometheus.Registry
	builds          *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	installs        *prometheus.CounterVec
	downloadedBytes prometheus.Counter
	publishedAssets prometheus.Counter
}

// New creates a recorder backed by its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archpack_builds_total",
				Help: "Number of build runs by outcome and architecture.",
			},
			[]string{"outcome", "arch"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archpack_build_duration_seconds",
				Help:    "Duration of build runs that compiled the project.",
				Buckets: prometheus.ExponentialBuckets(30, 2, 8),
			},
		),
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archpack_installs_total",
				Help: "Number of install runs by outcome and architecture.",
			},
			[]string{"outcome", "arch"},
		),
		downloadedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archpack_downloaded_bytes_total",
				Help: "Total bytes downloaded from the release store.",
			},
		),
		publishedAssets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archpack_published_assets_total",
				Help: "Total number of assets uploaded to the release store.",
			},
		),
	}

	r.registry.MustRegister(r.builds, r.buildDuration, r.installs, r.downloadedBytes, r.publishedAssets)

	return r
}

// ObserveBuild counts a build outcome; compiled builds also record their duration.
func (r *Recorder) ObserveBuild(outcome, arch string, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.builds.WithLabelValues(outcome, arch).Inc()

	if outcome == OutcomeBuilt {
		r.buildDuration.Observe(elapsed.Seconds())
	}
}

// ObserveInstall counts an install outcome.
func (r *Recorder) ObserveInstall(outcome, arch string) {
	if r == nil {
		return
	}

	r.installs.WithLabelValues(outcome, arch).Inc()
}

// AddDownloaded adds downloaded bytes.
func (r *Recorder) AddDownloaded(n int64) {
	if r == nil || n <= 0 {
		return
	}

	r.downloadedBytes.Add(float64(n))
}

// AddPublished counts uploaded assets.
func (r *Recorder) AddPublished(n int) {
	if r == nil || n <= 0 {
		return
	}

	r.publishedAssets.Add(float64(n))
}

// WriteTextfile writes all metrics to path. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
