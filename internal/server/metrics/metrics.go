// Package metrics defines the Prometheus instrumentation for the audio
// server. All metrics are registered on a private registry so tests can
// create Metrics values without colliding with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics.
	UploadsTotal     prometheus.Counter
	UploadFailures   prometheus.Counter
	DownloadsTotal   prometheus.Counter
	DownloadFailures prometheus.Counter

	// Conversion metrics.
	ConversionDuration prometheus.Histogram

	// Cleanup metrics.
	CleanupTasks    prometheus.Counter
	CleanupFailures prometheus.Counter

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		UploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_uploads_total",
			Help: "Total number of audio upload requests accepted by the pipeline",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_upload_failures_total",
			Help: "Total number of audio uploads that returned a failure",
		}),
		DownloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_downloads_total",
			Help: "Total number of audio download requests accepted by the pipeline",
		}),
		DownloadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_download_failures_total",
			Help: "Total number of audio downloads that returned a failure",
		}),

		ConversionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audio_conversion_duration_seconds",
			Help:    "Wall-clock duration of external transcoder invocations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		CleanupTasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_cleanup_tasks_total",
			Help: "Total number of background cleanup tasks executed",
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_cleanup_failures_total",
			Help: "Total number of background cleanup tasks that failed",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audio_http_requests_total",
			Help: "Total number of HTTP requests by method, path pattern and status",
		}, []string{"method", "path", "status"}),
	}
}

// Handler returns the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
