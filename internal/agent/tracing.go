package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one span per LLM call and per tool call, mirroring the
// shape of the teacher's per-turn span fields (name, duration, status,
// error) against the real OpenTelemetry SDK rather than a bespoke
// DB-backed collector: the collector package loop_tracing.go depended on
// was not present anywhere in the retrieved reference pack to adapt.
var tracer = otel.Tracer("codi/agent")

func startTurnSpan(ctx context.Context, model, provider string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("agent.model", model),
		attribute.String("agent.provider", provider),
	))
}

func startLLMSpan(ctx context.Context, model, provider string, iteration int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agent.llm_call", trace.WithAttributes(
		attribute.String("agent.model", model),
		attribute.String("agent.provider", provider),
		attribute.Int("agent.iteration", iteration),
	))
}

func startToolSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agent.tool_call", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.id", id),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func endToolSpan(span trace.Span, isError bool) {
	if isError {
		span.SetStatus(codes.Error, "tool returned an error result")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
