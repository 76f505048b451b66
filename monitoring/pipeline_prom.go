// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "vulnfeed_cycle_duration_seconds",
	Help:    "Duration of full ingestion cycles in seconds",
	Buckets: prometheus.ExponentialBuckets(1, 2, 12),
})

var RecordsSeen = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vulnfeed_records_seen_total",
	Help: "The total number of feed records fetched",
})

var UpsertOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vulnfeed_upsert_outcomes_total",
	Help: "The total number of upsert outcomes by kind",
}, []string{"kind"})

var PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vulnfeed_pipeline_errors_total",
	Help: "The total number of pipeline errors by kind",
}, []string{"kind"})

var EvidenceMatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vulnfeed_evidence_matches_total",
	Help: "The total number of persisted evidence matches by kind",
}, []string{"kind"})

var NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vulnfeed_notifications_sent_total",
	Help: "The total number of notifications handed to the messenger",
})

var WatermarkTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vulnfeed_watermark_timestamp_seconds",
	Help: "The ingestion watermark as a unix timestamp",
})
