// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRankSpan creates a span for one ranking pipeline pass.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartRankSpan(ctx, len(candidates))
//	defer endSpan(err)
//	// ... run the pipeline ...
func StartRankSpan(ctx context.Context, candidateCount int) (context.Context, func(error)) {
	tracer := otel.Tracer("lucent/ranking")

	ctx, span := tracer.Start(ctx, "rank feed",
		trace.WithAttributes(
			attribute.Int("rank.candidate_count", candidateCount),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSourceSpan creates a span for an external data-source fetch (vector
// index, stats, seen-history). Returns the new context and a function to end
// the span.
func StartSourceSpan(ctx context.Context, source string) (context.Context, func(error)) {
	tracer := otel.Tracer("lucent/feed")

	ctx, span := tracer.Start(ctx, "fetch "+source,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("feed.source", source),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("lucent")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
