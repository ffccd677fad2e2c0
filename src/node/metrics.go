package node

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is the prometheus subsystem of the node metrics.
const MetricsSubsystem = "node"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Amendments added to the branches, labelled by outcome.
	Amendments metrics.Counter
	// Bundles received from peers that failed verification.
	RejectedBundles metrics.Counter
	// Number of tracked branches.
	Branches metrics.Gauge
	// Greatest head number over all branches.
	BestNumber metrics.Gauge
	// Failed pulls, labelled by peer.
	PullErrors metrics.Counter
	// Duration of a pull, in seconds.
	PullDuration metrics.Histogram
}

// PrometheusMetrics returns Metrics built using the Prometheus client library.
// The collectors are registered with the default registry, so it must be
// called once per process.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Amendments: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "amendments",
			Help:      "Amendments added to the branches, by outcome.",
		}, []string{"outcome"}),
		RejectedBundles: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejected_bundles",
			Help:      "Pulled bundles that failed verification.",
		}, []string{}),
		Branches: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "branches",
			Help:      "Number of tracked branches.",
		}, []string{}),
		BestNumber: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "best_number",
			Help:      "Greatest amendment number over all branches.",
		}, []string{}),
		PullErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pull_errors",
			Help:      "Failed pulls, by peer.",
		}, []string{"peer"}),
		PullDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pull_duration_seconds",
			Help:      "Time taken to pull and verify a range of amendments.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Amendments:      discard.NewCounter(),
		RejectedBundles: discard.NewCounter(),
		Branches:        discard.NewGauge(),
		BestNumber:      discard.NewGauge(),
		PullErrors:      discard.NewCounter(),
		PullDuration:    discard.NewHistogram(),
	}
}
