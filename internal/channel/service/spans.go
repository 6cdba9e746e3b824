package service

import (
	"context"

	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (s *Service) startSpan(ctx context.Context, operation, headID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("hydra.operation", operation)}
	if headID != "" {
		attrs = append(attrs, attribute.String("hydra.head_id", headID))
	}
	return s.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.SafeAttributes(attrs...)...),
	)
}

func endSpan(span trace.Span, failure *hydra.Failure) {
	if failure != nil {
		span.SetAttributes(attribute.String("hydra.failure", failure.Reason))
		span.SetStatus(codes.Error, failure.Reason)
	}
	span.End()
}
