package selector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the prometheus metrics for the selector
type Metrics struct {
	EnsureDuration *prometheus.HistogramVec

	SelectionsCreated  prometheus.Counter
	SelectionConflicts prometheus.Counter
	SelectionResets    prometheus.Counter
	ItemsMarked        prometheus.Counter

	SelectionSize prometheus.Gauge
	EligibleItems prometheus.Gauge
	RecentItems   prometheus.Gauge

	SchedulerRuns *prometheus.CounterVec
}

// NewMetrics creates and registers the selector metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EnsureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selector_ensure_duration_seconds",
				Help:    "Time spent ensuring the selection for the current window",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),

		SelectionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_selections_created_total",
				Help: "Selections created by this process",
			},
		),

		SelectionConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_selection_conflicts_total",
				Help: "Selections discarded because another caller created the window first",
			},
		),

		SelectionResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_selection_resets_total",
				Help: "Selections deleted by an administrative reset",
			},
		),

		ItemsMarked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "selector_items_marked_total",
				Help: "Items marked as served",
			},
		),

		SelectionSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "selector_selection_size",
				Help: "Number of items in the current window's selection",
			},
		),

		EligibleItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "selector_eligible_items",
				Help: "Eligible items found for the last created selection",
			},
		),

		RecentItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "selector_recent_items",
				Help: "Recently served items loaded to fill the last created selection",
			},
		),

		SchedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_scheduler_runs_total",
				Help: "Scheduler ensure attempts by status",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.EnsureDuration,
		m.SelectionsCreated,
		m.SelectionConflicts,
		m.SelectionResets,
		m.ItemsMarked,
		m.SelectionSize,
		m.EligibleItems,
		m.RecentItems,
		m.SchedulerRuns,
	)

	return m
}
