package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesEnqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "messages_enqueued_total",
			Help:      "Total outgoing messages routed into a bundle.",
		},
		[]string{"category", "status"}, // status: "success", "error"
	)

	bundlesClosedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "bundles_closed_total",
			Help:      "Total bundles closed, by close reason.",
		},
		[]string{"reason"},
	)

	peeksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "peeks_total",
			Help:      "Total peek requests.",
		},
		[]string{"category", "outcome"}, // outcome: "found", "empty", "error"
	)

	materializationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "materializations_total",
			Help:      "Total market document materializations.",
		},
		[]string{"format", "outcome"}, // outcome: "rendered", "cache_hit", "conflict", "error"
	)

	materializationDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edi_outgoing",
			Name:      "materialization_duration_seconds",
			Help:      "Duration of rendering and storing a market document.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	dequeuesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "dequeues_total",
			Help:      "Total dequeue requests.",
		},
		[]string{"outcome"}, // outcome: "success", "not_found", "not_closed", "error"
	)

	retentionDeletedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Name:      "retention_bundles_deleted_total",
			Help:      "Total dequeued bundles removed by the retention sweep.",
		},
	)
)
