// Copyright (C) 2025 AI-Impact UK (engineering@aiimpact.uk)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the analysis service.
//
// # Description
//
// Metrics cover the full analysis pipeline: request counters by outcome,
// flag counters by severity and source, the hallucination-guard drop count,
// inference attempts, per-stage latency histograms, and the current corpus
// size. Exposed via the /metrics endpoint for Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "governor"

// Subsystem for analysis pipeline metrics
const analysisSubsystem = "analysis"

// AnalysisMetrics holds all Prometheus metrics for the analysis pipeline.
//
// # Fields
//
//   - AnalysesTotal: Counter of analysis requests by outcome
//   - FlagsTotal: Counter of emitted flags by severity and source
//   - DroppedFlagsTotal: Counter of generative flags dropped by the allow-list
//   - InferenceAttemptsTotal: Counter of inference calls by status
//   - StageDurationSeconds: Histogram of per-stage pipeline latency
//   - CorpusClauses: Gauge of clauses in the current corpus snapshot
//
// # Thread Safety
//
// All operations are thread-safe.
type AnalysisMetrics struct {
	// AnalysesTotal counts analysis requests.
	// Labels: outcome (flags, synthesized, empty, error)
	AnalysesTotal *prometheus.CounterVec

	// FlagsTotal counts flags returned to clients.
	// Labels: severity (red, amber, green), source (generative, legacy-rule, synthesized)
	FlagsTotal *prometheus.CounterVec

	// DroppedFlagsTotal counts generative flags discarded for referencing a
	// clause outside the retrieved set.
	DroppedFlagsTotal prometheus.Counter

	// InferenceAttemptsTotal counts calls to the inference backend.
	// Labels: status (success, error), attempt (1, 2)
	InferenceAttemptsTotal *prometheus.CounterVec

	// StageDurationSeconds measures pipeline stage latency.
	// Labels: stage (retrieval, rules, llm, reconcile)
	StageDurationSeconds *prometheus.HistogramVec

	// CorpusClauses tracks the clause count of the live snapshot.
	CorpusClauses prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AnalysisMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnalysisMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *AnalysisMetrics {
	DefaultMetrics = &AnalysisMetrics{
		AnalysesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "analyses_total",
				Help:      "Total analysis requests by outcome",
			},
			[]string{"outcome"},
		),

		FlagsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "flags_total",
				Help:      "Total compliance flags emitted by severity and source",
			},
			[]string{"severity", "source"},
		),

		DroppedFlagsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "dropped_flags_total",
				Help:      "Generative flags dropped for referencing a non-retrieved clause",
			},
		),

		InferenceAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "inference_attempts_total",
				Help:      "Inference backend calls by status and attempt number",
			},
			[]string{"status", "attempt"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 120.0},
			},
			[]string{"stage"},
		),

		CorpusClauses: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "corpus_clauses",
				Help:      "Clause count of the current corpus snapshot",
			},
		),
	}
	return DefaultMetrics
}

// RecordFlag increments the flag counter, guarding against an uninitialized
// singleton in unit tests.
func RecordFlag(severity, source string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.FlagsTotal.WithLabelValues(severity, source).Inc()
}

// RecordStageDuration observes one pipeline stage latency in seconds.
func RecordStageDuration(stage string, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}
