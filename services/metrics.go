// Package services holds the fanout engine, the notification dispatcher and
// the push gateways behind it.
package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeSent             = "sent"
	outcomeFailed           = "failed"
	outcomeGone             = "gone"
	outcomeNotHeld          = "not_held"
	outcomeSkippedDisabled  = "skipped_disabled"
	outcomeSkippedQuiet     = "skipped_quiet_hours"
	outcomeUnregistered     = "unregistered"
	outcomeSuccess          = "success"
	outcomeRelationshipFail = "relationship_failed"
	outcomeLookupFail       = "token_lookup_failed"
)

type serviceMetrics struct {
	frames         *prometheus.CounterVec
	pushes         *prometheus.CounterVec
	shareTargets   *prometheus.CounterVec
	fanoutDuration *prometheus.HistogramVec
}

// Singleton so repeated constructors (and tests) do not double-register.
var (
	metricsInstance *serviceMetrics
	metricsOnce     sync.Once
	metricsRegistry = prometheus.DefaultRegisterer
)

func newServiceMetrics() *serviceMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &serviceMetrics{
			frames: promauto.With(metricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "timer_fanout_frames_total",
				Help: "Live frames pushed to connections, by event and outcome",
			}, []string{"event", "outcome"}),
			pushes: promauto.With(metricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "timer_push_notifications_total",
				Help: "Push notification attempts per device, by outcome",
			}, []string{"outcome"}),
			shareTargets: promauto.With(metricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "timer_share_targets_total",
				Help: "Share targets processed, by outcome",
			}, []string{"outcome"}),
			fanoutDuration: promauto.With(metricsRegistry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "timer_fanout_duration_seconds",
				Help:    "Time taken by a fanout operation",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"operation"}),
		}
	})
	return metricsInstance
}

// resetMetricsForTesting swaps in a fresh registry. Only called from tests.
func resetMetricsForTesting() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metricsRegistry = reg
	metricsInstance = nil
	metricsOnce = sync.Once{}
	return reg
}
