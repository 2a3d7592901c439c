// Package metrics exposes prometheus instrumentation for the build and
// validation pipeline. The collectors are registered on the default
// registerer; the watch command serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BuildsTotal counts pipeline runs by outcome.
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paramspec",
		Name:      "builds_total",
		Help:      "Pipeline builds by result (ok, fatal, issues).",
	}, []string{"result"})

	// BuildDuration observes full pipeline wall time.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paramspec",
		Name:      "build_duration_seconds",
		Help:      "Full pipeline duration.",
		Buckets:   prometheus.DefBuckets,
	})

	// PropagationDuration observes the uncertainty propagation stage by mode.
	PropagationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paramspec",
		Name:      "propagation_duration_seconds",
		Help:      "Uncertainty propagation duration by mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	// SamplesDrawn counts Monte Carlo draws.
	SamplesDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paramspec",
		Name:      "monte_carlo_samples_total",
		Help:      "Monte Carlo samples drawn across all builds.",
	})

	// IssuesFound reports the issue count of the latest scan by kind.
	IssuesFound = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "paramspec",
		Name:      "scan_issues",
		Help:      "Issues found by the latest corpus scan, by kind.",
	}, []string{"kind"})

	// DocumentsScanned reports the corpus size of the latest scan.
	DocumentsScanned = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "paramspec",
		Name:      "scan_documents",
		Help:      "Documents scanned in the latest pass.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
