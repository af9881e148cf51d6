package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var pipelineTracer = otel.Tracer("sportcal/internal/usecase")

// startUsecaseSpan opens a child span when the caller is already
// traced; untraced callers get a noop span so services never branch on
// tracing being configured.
func startUsecaseSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return pipelineTracer.Start(ctx, name)
}
