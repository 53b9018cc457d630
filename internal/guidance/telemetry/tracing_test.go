/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestInitTraceProviderNoopWhenEmpty(t *testing.T) {
	shutdown, err := InitTraceProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestGateSpanRecordsDecision(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartGateSpan(ctx, "destructive-ops", "pre_command")
	EndGateSpan(span, "block", "rm -rf on root path")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "guidance.gate" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "guidance.gate")
	}

	foundGate, foundDecision := false, false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "guidance.gate" && a.Value.AsString() == "destructive-ops" {
			foundGate = true
		}
		if string(a.Key) == "guidance.decision" && a.Value.AsString() == "block" {
			foundDecision = true
		}
	}
	if !foundGate {
		t.Error("missing guidance.gate attribute")
	}
	if !foundDecision {
		t.Error("missing guidance.decision attribute")
	}
}

func TestGatewaySpanRecordsIdempotentHit(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartGatewaySpan(ctx, "Write")
	EndGatewaySpan(span, "allow", true)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "guidance.gateway.evaluate" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "guidance.gateway.evaluate")
	}

	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "guidance.idempotent_hit" && a.Value.AsBool() {
			found = true
		}
	}
	if !found {
		t.Error("missing guidance.idempotent_hit attribute")
	}
}

func TestAdmissionSpanRecordsRiskScore(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	_, span := StartAdmissionSpan(ctx, "sha256:"+repeatDigit("a", 64))
	EndAdmissionSpan(span, "review", 55.0)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "guidance.risk_score" && a.Value.AsFloat64() == 55.0 {
			found = true
		}
	}
	if !found {
		t.Error("missing guidance.risk_score attribute")
	}
}

func TestNestedGateAndGatewaySpans(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx := context.Background()
	ctx, gwSpan := StartGatewaySpan(ctx, "Bash")
	_, gateSpan := StartGateSpan(ctx, "allowlist", "pre_tool_use")
	gateSpan.End()
	gwSpan.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	gateStub := spans[0]
	gwStub := spans[1]
	if gateStub.Parent.TraceID() != gwStub.SpanContext.TraceID() {
		t.Error("gate span should share trace ID with gateway span")
	}
	if !gateStub.Parent.SpanID().IsValid() {
		t.Error("gate span should have a valid parent span ID")
	}
}

func repeatDigit(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
