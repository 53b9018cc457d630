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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/marcus-qen/guidance"

// Tracer returns the package-level tracer for guidance-core spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC trace provider. If endpoint is
// empty, tracing is disabled (the default no-op provider is left in
// place). Returns a shutdown function the host must call on exit.
func InitTraceProvider(ctx context.Context, endpoint, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("guidance-core"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartGateSpan traces one gate evaluation (destructive-ops, secrets,
// allowlist, edit-size).
func StartGateSpan(ctx context.Context, gate, event string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "guidance.gate",
		trace.WithAttributes(
			attribute.String("guidance.gate", gate),
			attribute.String("guidance.event", event),
		),
	)
}

// EndGateSpan enriches the gate span with its outcome.
func EndGateSpan(span trace.Span, decision, reason string) {
	span.SetAttributes(
		attribute.String("guidance.decision", decision),
		attribute.String("guidance.reason", reason),
	)
	span.End()
}

// StartGatewaySpan traces one deterministic tool gateway evaluation.
func StartGatewaySpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "guidance.gateway.evaluate",
		trace.WithAttributes(attribute.String("guidance.tool", tool)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndGatewaySpan enriches the gateway span with its outcome.
func EndGatewaySpan(span trace.Span, decision string, idempotentHit bool) {
	span.SetAttributes(
		attribute.String("guidance.decision", decision),
		attribute.Bool("guidance.idempotent_hit", idempotentHit),
	)
	span.End()
}

// StartAdmissionSpan traces one manifest admission decision.
func StartAdmissionSpan(ctx context.Context, codeRef string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "guidance.manifest.validate",
		trace.WithAttributes(attribute.String("guidance.code_ref", codeRef)),
	)
}

// EndAdmissionSpan enriches the admission span with its outcome.
func EndAdmissionSpan(span trace.Span, decision string, riskScore float64) {
	span.SetAttributes(
		attribute.String("guidance.decision", decision),
		attribute.Float64("guidance.risk_score", riskScore),
	)
	span.End()
}

// StartContinueSpan traces one continue-gate step evaluation.
func StartContinueSpan(ctx context.Context, taskID string, step int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "guidance.continuegate.evaluate",
		trace.WithAttributes(
			attribute.String("guidance.task", taskID),
			attribute.Int("guidance.step", step),
		),
	)
}

// EndContinueSpan enriches the continue-gate span with its outcome.
func EndContinueSpan(span trace.Span, decision, reason string) {
	span.SetAttributes(
		attribute.String("guidance.decision", decision),
		attribute.String("guidance.reason", reason),
	)
	span.End()
}
