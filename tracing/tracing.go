// Package tracing wraps an OpenTelemetry tracer for attribute fetches and
// SQL store statements.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans produced by this module.
const InstrumentationName = "github.com/Skryldev/proofing-amp"

// Tracer starts spans for fetches and implements db.Tracer for statements.
// The zero value is not usable; use New.
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer using tp. A nil tp uses the global provider, which is
// a no-op until one is installed.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(InstrumentationName)}
}

// StartFetch opens the span covering one fetch-and-diff.
func (t *Tracer) StartFetch(ctx context.Context, contextName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "proofing.FetchAndDiff",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("proofing.context", contextName)),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartSpan implements db.Tracer.
func (t *Tracer) StartSpan(ctx context.Context, query string, start time.Time) context.Context {
	ctx, _ = t.tracer.Start(ctx, "store.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(attribute.String("db.statement", query)),
	)
	return ctx
}

// EndSpan implements db.Tracer.
func (t *Tracer) EndSpan(ctx context.Context, err error) {
	End(trace.SpanFromContext(ctx), err)
}
