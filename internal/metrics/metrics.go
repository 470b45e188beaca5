// Package metrics provides Prometheus metrics for the sound bank.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundbank_sync_total",
			Help: "Total number of synchronization passes",
		},
		[]string{"source", "result"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundbank_sync_duration_seconds",
			Help:    "Duration of synchronization passes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundbank_downloads_total",
			Help: "Total number of clip transfers",
		},
		[]string{"result"},
	)

	downloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundbank_download_bytes_total",
			Help: "Total bytes written into the bank directory",
		},
	)

	evictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundbank_evictions_total",
			Help: "Total number of evicted assets",
		},
	)

	decodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundbank_decode_failures_total",
			Help: "Total number of files that could not be decoded",
		},
	)

	assetsIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soundbank_assets",
			Help: "Number of assets currently indexed",
		},
	)
)

// RecordSync records one finished synchronization pass.
func RecordSync(source string, ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	syncTotal.WithLabelValues(source, result).Inc()
	syncDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordTransfer records one download or local copy; result is
// "downloaded", "copied" or "failed".
func RecordTransfer(result string, bytes int64) {
	downloadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		downloadBytes.Add(float64(bytes))
	}
}

func RecordEviction()      { evictionsTotal.Inc() }
func RecordDecodeFailure() { decodeFailures.Inc() }
func SetAssets(n int)      { assetsIndexed.Set(float64(n)) }

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
