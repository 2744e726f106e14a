// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the companion
// service: chat volume by reply source, reply latency, tone selections, and
// feedback outcomes. Exposed on /metrics; all operations are thread-safe
// via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ani"

const chatSubsystem = "chat"

// Metrics holds all Prometheus metrics for the companion service.
// Initialize once at startup via NewMetrics.
type Metrics struct {
	// ChatRequestsTotal counts chat requests.
	// Labels: source (llm, stub), status (ok, invalid)
	ChatRequestsTotal *prometheus.CounterVec

	// ReplyLatencySeconds measures end-to-end reply latency.
	// Labels: source (llm, stub)
	ReplyLatencySeconds *prometheus.HistogramVec

	// ToneSelectionsTotal counts bandit tone selections.
	// Labels: arm
	ToneSelectionsTotal *prometheus.CounterVec

	// FeedbackTotal counts feedback submissions.
	// Labels: outcome (applied, unknown, duplicate, invalid)
	FeedbackTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the metric set with the given registerer
// (use prometheus.DefaultRegisterer in main, a fresh registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "requests_total",
			Help:      "Chat requests by reply source and status.",
		}, []string{"source", "status"}),
		ReplyLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "reply_latency_seconds",
			Help:      "End-to-end reply latency by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		ToneSelectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "tone_selections_total",
			Help:      "Bandit tone selections by arm.",
		}, []string{"arm"}),
		FeedbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "feedback_total",
			Help:      "Feedback submissions by outcome.",
		}, []string{"outcome"}),
	}
}
