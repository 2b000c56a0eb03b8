// Package metrics exposes the Prometheus metrics the reconciler (C6)
// emits once per tick, registered through controller-runtime's shared
// registry so they are served on the same convention other
// controller-runtime-based controllers use.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
)

var (
	registerOnce sync.Once

	ticksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kube_autorollout_ticks_total",
		Help: "Total number of reconciliation ticks grouped by outcome.",
	}, []string{"result"})

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kube_autorollout_tick_duration_seconds",
		Help:    "Histogram of reconciliation tick durations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kube_autorollout_decisions_total",
		Help: "Total number of per-workload rollout decisions grouped by kind.",
	}, []string{"decision"})

	registryQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kube_autorollout_registry_queries_total",
		Help: "Total number of registry digest lookups grouped by outcome.",
	}, []string{"result"})

	patchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kube_autorollout_patches_total",
		Help: "Total number of restart-annotation patches grouped by outcome.",
	}, []string{"result"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kube_autorollout_errors_total",
		Help: "Total number of categorized errors observed during reconciliation.",
	}, []string{"category"})
)

func ensureRegistered() {
	registerOnce.Do(func() {
		ctrlmetrics.Registry.MustRegister(ticksTotal, tickDuration, decisionsTotal, registryQueriesTotal, patchesTotal, errorsTotal)
	})
}

// RecordTick records one reconciliation tick's outcome and duration.
func RecordTick(duration time.Duration, err error) {
	ensureRegistered()

	result := "success"
	if err != nil {
		result = "error"
	}
	ticksTotal.WithLabelValues(result).Inc()
	tickDuration.Observe(duration.Seconds())
}

// RecordDecision records one workload's RolloutDecision.
func RecordDecision(kind core.DecisionKind) {
	ensureRegistered()
	decisionsTotal.WithLabelValues(decisionLabel(kind)).Inc()
}

// RecordRegistryQuery records the outcome of one distinct-triplet digest lookup.
func RecordRegistryQuery(err error) {
	ensureRegistered()
	result := "success"
	if err != nil {
		result = "error"
	}
	registryQueriesTotal.WithLabelValues(result).Inc()
}

// RecordPatch records the outcome of one patch attempt.
func RecordPatch(err error) {
	ensureRegistered()
	result := "success"
	if err != nil {
		result = "error"
	}
	patchesTotal.WithLabelValues(result).Inc()
}

// RecordError records one categorized error observed during reconciliation.
func RecordError(category core.ErrorCategory) {
	ensureRegistered()
	if category == "" {
		category = "Uncategorized"
	}
	errorsTotal.WithLabelValues(string(category)).Inc()
}

func decisionLabel(kind core.DecisionKind) string {
	switch kind {
	case core.SkipNoChange:
		return "SkipNoChange"
	case core.SkipWarning:
		return "SkipWarning"
	case core.Patch:
		return "Patch"
	default:
		return "Unknown"
	}
}
