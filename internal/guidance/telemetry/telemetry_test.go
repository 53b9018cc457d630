/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	log, err := NewLogger("bogus-level")
	if err != nil {
		t.Fatal(err)
	}
	if log.GetSink() == nil {
		t.Fatal("expected a non-nil logger sink")
	}
}

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 0 {
		t.Fatalf("expected no samples before any recording, got %d families", len(families))
	}

	m.RecordGateDecision("edit-size", "allow")
	m.RecordAdmission("admit")
	m.SetCoherenceScore("task-1", 0.92)
	m.SetBudgetUtilization("tokens", 0.5)
	m.RecordContinueDecision("continue")
	m.ObserveToolCallDuration("Read", 10*time.Millisecond)
	m.RecordLedgerEvent("refactor")
	m.RecordMemoryWrite("allow")

	families, err = reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 8 {
		t.Fatalf("expected 8 metric families after recording, got %d", len(families))
	}
}

func TestNilMetricsIsSafeToCall(t *testing.T) {
	var m *Metrics
	m.RecordGateDecision("edit-size", "allow")
	m.RecordAdmission("admit")
	m.SetCoherenceScore("task-1", 0.92)
	m.SetBudgetUtilization("tokens", 0.5)
	m.RecordContinueDecision("continue")
	m.ObserveToolCallDuration("Read", 10*time.Millisecond)
	m.RecordLedgerEvent("refactor")
	m.RecordMemoryWrite("allow")
}
