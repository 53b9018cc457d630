/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry provides the logger and Prometheus metrics shared
// across every guidance-core component. Constructors throughout the core
// take a logr.Logger the way the rest of the pack's managers and
// detectors do; this package is where that logger and the metrics it
// feeds are built.
package telemetry

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the default structured logger. level is one of
// "debug", "info", "warn", "error"; unrecognized values fall back to info.
func NewLogger(level string) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Metrics holds every Prometheus collector the guidance core exports.
// Naming follows the pack's convention: a guidance_ prefix, _total for
// counters, _seconds for duration histograms.
type Metrics struct {
	GateDecisionsTotal      *prometheus.CounterVec
	AdmissionsTotal         *prometheus.CounterVec
	CoherenceScore          *prometheus.GaugeVec
	BudgetUtilization       *prometheus.GaugeVec
	ContinueDecisionsTotal  *prometheus.CounterVec
	ToolCallDurationSeconds *prometheus.HistogramVec
	LedgerEventsTotal       *prometheus.CounterVec
	MemoryWritesTotal       *prometheus.CounterVec
}

// NewMetrics builds and registers the guidance core's metrics against reg.
// Pass prometheus.NewRegistry() for an isolated registry (the usual case
// in tests and embedded use), or prometheus.DefaultRegisterer for a
// process that wants them on its default /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidance_gate_decisions_total",
				Help: "Total gate evaluations by gate name and decision.",
			},
			[]string{"gate", "decision"},
		),
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidance_admissions_total",
				Help: "Total manifest admission decisions.",
			},
			[]string{"decision"},
		),
		CoherenceScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guidance_coherence_score",
				Help: "Current coherence score by task.",
			},
			[]string{"task"},
		),
		BudgetUtilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guidance_budget_utilization_ratio",
				Help: "Fraction of budget consumed by dimension.",
			},
			[]string{"dimension"},
		),
		ContinueDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidance_continue_decisions_total",
				Help: "Total continue-gate decisions by outcome.",
			},
			[]string{"decision"},
		),
		ToolCallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guidance_tool_call_duration_seconds",
				Help:    "Duration of gateway tool-call evaluations.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),
		LedgerEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidance_ledger_events_total",
				Help: "Total run events created by the ledger.",
			},
			[]string{"intent"},
		),
		MemoryWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidance_memory_writes_total",
				Help: "Total memory-write gate decisions by outcome.",
			},
			[]string{"decision"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.GateDecisionsTotal,
			m.AdmissionsTotal,
			m.CoherenceScore,
			m.BudgetUtilization,
			m.ContinueDecisionsTotal,
			m.ToolCallDurationSeconds,
			m.LedgerEventsTotal,
			m.MemoryWritesTotal,
		)
	}
	return m
}

// RecordGateDecision is nil-safe: a component holding a nil *Metrics (the
// zero value for telemetry-optional construction) can call it unconditionally.
func (m *Metrics) RecordGateDecision(gate, decision string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(gate, decision).Inc()
}

// RecordAdmission records one manifest admission decision.
func (m *Metrics) RecordAdmission(decision string) {
	if m == nil {
		return
	}
	m.AdmissionsTotal.WithLabelValues(decision).Inc()
}

// SetCoherenceScore records the current coherence score for a task.
func (m *Metrics) SetCoherenceScore(task string, score float64) {
	if m == nil {
		return
	}
	m.CoherenceScore.WithLabelValues(task).Set(score)
}

// SetBudgetUtilization records the consumed fraction of a budget dimension.
func (m *Metrics) SetBudgetUtilization(dimension string, ratio float64) {
	if m == nil {
		return
	}
	m.BudgetUtilization.WithLabelValues(dimension).Set(ratio)
}

// RecordContinueDecision records one continue-gate decision.
func (m *Metrics) RecordContinueDecision(decision string) {
	if m == nil {
		return
	}
	m.ContinueDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveToolCallDuration records how long a gateway evaluation took for a tool.
func (m *Metrics) ObserveToolCallDuration(tool string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallDurationSeconds.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordLedgerEvent records one ledger event creation by intent.
func (m *Metrics) RecordLedgerEvent(intent string) {
	if m == nil {
		return
	}
	m.LedgerEventsTotal.WithLabelValues(intent).Inc()
}

// RecordMemoryWrite records one memory-write gate decision.
func (m *Metrics) RecordMemoryWrite(decision string) {
	if m == nil {
		return
	}
	m.MemoryWritesTotal.WithLabelValues(decision).Inc()
}
