package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "streamio"
	subsystem = "registry"
)

// metrics holds the registry instruments.
type metrics struct {
	subscriptions prometheus.Gauge
	observers     prometheus.Gauge
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	applies       *prometheus.CounterVec
	storeWrites   prometheus.Counter
	releases      prometheus.Counter
	failures      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &metrics{
		subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions",
			Help:      "Number of registered subscriptions",
		}),
		observers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "observers",
			Help:      "Number of attached observers",
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Fetch cycles by outcome",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of completed fetch cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		applies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "applies_total",
			Help:      "Observer updates by mode",
		}, []string{"mode"}),
		storeWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_writes_total",
			Help:      "Cache entries written",
		}),
		releases: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "releases_total",
			Help:      "Subscriptions released after the grace period",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Non-fatal failures by kind",
		}, []string{"kind"}),
	}
}
