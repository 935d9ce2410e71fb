// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring chat turns.
// Metrics include:
//   - Turn counters and latency (by mode and outcome)
//   - Generator latency, failures and retries
//   - Session store operation latency and errors (by backend and op)
//   - HTTP request counters (by endpoint and status)
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *ChatMetrics so components can be
// constructed without metrics in tests.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for chat metrics
const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for chat operations.
//
// # Description
//
// Provides counters and histograms for monitoring turn orchestration,
// generator health and storage performance. Initialize once at startup via
// InitMetrics(), or per test via NewChatMetrics with a private registry.
//
// # Fields
//
//   - TurnsTotal: Counter of turns by mode and outcome
//   - TurnDurationSeconds: Histogram of full turn duration
//   - GeneratorDurationSeconds: Histogram of generator call duration
//   - GeneratorFailuresTotal: Counter of absorbed generator failures
//   - GeneratorRetriesTotal: Counter of generator retry attempts
//   - StoreOperationsTotal: Counter of store operations by backend/op/status
//   - StoreDurationSeconds: Histogram of store operation duration
//   - SessionsCreatedTotal / SessionsDeletedTotal: Lifecycle counters
//   - RequestsTotal: Counter of HTTP requests by endpoint and status
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// TurnsTotal counts completed turns.
	// Labels: mode (chat, technical, concise, exam), outcome (success, fallback)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures total turn duration including storage.
	// Labels: mode
	TurnDurationSeconds *prometheus.HistogramVec

	// GeneratorDurationSeconds measures a single generator call.
	// Labels: status (success, error)
	GeneratorDurationSeconds *prometheus.HistogramVec

	// GeneratorFailuresTotal counts generator failures replaced by the fallback reply.
	// Labels: reason (timeout, error)
	GeneratorFailuresTotal *prometheus.CounterVec

	// GeneratorRetriesTotal counts retry attempts after a failed generator call.
	GeneratorRetriesTotal prometheus.Counter

	// StoreOperationsTotal counts store operations.
	// Labels: backend (document, badger, sqlite), op (get, put, delete, list), status
	StoreOperationsTotal *prometheus.CounterVec

	// StoreDurationSeconds measures store operation latency.
	// Labels: backend, op
	StoreDurationSeconds *prometheus.HistogramVec

	// SessionsCreatedTotal counts sessions created.
	SessionsCreatedTotal prometheus.Counter

	// SessionsDeletedTotal counts sessions that existed and were deleted.
	SessionsDeletedTotal prometheus.Counter

	// RequestsTotal counts HTTP requests.
	// Labels: endpoint, status (HTTP status code class: 2xx, 4xx, 5xx)
	RequestsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics on the default registry.
// Should be called once at application startup.
//
// # Outputs
//
//   - *ChatMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ChatMetrics {
	DefaultMetrics = NewChatMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewChatMetrics creates and registers all chat metrics on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Tests pass prometheus.NewRegistry().
//
// # Outputs
//
//   - *ChatMetrics: The registered metrics.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	f := promauto.With(reg)

	return &ChatMetrics{
		TurnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turns_total",
				Help:      "Total number of chat turns by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		TurnDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Total turn duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		GeneratorDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "generator_duration_seconds",
				Help:      "Generator call duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		GeneratorFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "generator_failures_total",
				Help:      "Generator failures absorbed with the fallback reply",
			},
			[]string{"reason"},
		),

		GeneratorRetriesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "generator_retries_total",
				Help:      "Generator retry attempts",
			},
		),

		StoreOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "store_operations_total",
				Help:      "Session store operations by backend, op and status",
			},
			[]string{"backend", "op", "status"},
		),

		StoreDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "store_duration_seconds",
				Help:      "Session store operation duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"backend", "op"},
		),

		SessionsCreatedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "sessions_created_total",
				Help:      "Total sessions created",
			},
		),

		SessionsDeletedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "sessions_deleted_total",
				Help:      "Total sessions deleted",
			},
		),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// TurnOutcome labels how a turn produced its reply.
type TurnOutcome string

const (
	// TurnOutcomeSuccess indicates the generator produced the reply.
	TurnOutcomeSuccess TurnOutcome = "success"

	// TurnOutcomeFallback indicates the fallback reply was used.
	TurnOutcomeFallback TurnOutcome = "fallback"
)

// FailureReason labels why a generator call was absorbed.
type FailureReason string

const (
	// FailureReasonTimeout indicates the generator exceeded its deadline.
	FailureReasonTimeout FailureReason = "timeout"

	// FailureReasonError indicates a transport or provider error.
	FailureReasonError FailureReason = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records a completed turn.
//
// # Inputs
//
//   - mode: The mode actually used.
//   - outcome: Whether the reply was generated or the fallback.
//   - d: Total turn duration.
func (m *ChatMetrics) RecordTurn(mode string, outcome TurnOutcome, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(mode, string(outcome)).Inc()
	m.TurnDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordGenerator records one generator call.
func (m *ChatMetrics) RecordGenerator(success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.GeneratorDurationSeconds.WithLabelValues(statusLabel(success)).Observe(d.Seconds())
}

// RecordGeneratorFailure records a failure absorbed by the fallback path.
func (m *ChatMetrics) RecordGeneratorFailure(reason FailureReason) {
	if m == nil {
		return
	}
	m.GeneratorFailuresTotal.WithLabelValues(string(reason)).Inc()
}

// RecordGeneratorRetry increments the retry counter.
func (m *ChatMetrics) RecordGeneratorRetry() {
	if m == nil {
		return
	}
	m.GeneratorRetriesTotal.Inc()
}

// RecordStoreOp records one store operation.
//
// # Inputs
//
//   - backend: Store backend name.
//   - op: Operation name (get, put, delete, list).
//   - d: Operation duration.
//   - success: Whether the operation completed without a storage failure.
func (m *ChatMetrics) RecordStoreOp(backend, op string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(backend, op, statusLabel(success)).Inc()
	m.StoreDurationSeconds.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordSessionCreated increments the created counter.
func (m *ChatMetrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
}

// RecordSessionDeleted increments the deleted counter.
func (m *ChatMetrics) RecordSessionDeleted() {
	if m == nil {
		return
	}
	m.SessionsDeletedTotal.Inc()
}

// RecordRequest records a handled HTTP request.
//
// # Inputs
//
//   - endpoint: Route template, e.g. "/api/chat".
//   - code: HTTP status code written.
func (m *ChatMetrics) RecordRequest(endpoint string, code int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, statusClass(code)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
