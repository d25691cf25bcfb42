package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for conduit tracing.
const tracerName = "github.com/xraph/conduit"

// Tracing returns middleware that wraps each execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through.
//
// Span attributes include: conduit.unit.id, conduit.unit.name,
// conduit.unit.kind, conduit.unit.periodic, conduit.job.id.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, u *Unit, next Handler) error {
		ctx, span := tracer.Start(ctx, "conduit.unit.execute",
			trace.WithAttributes(
				attribute.String("conduit.unit.id", u.ID),
				attribute.String("conduit.unit.name", u.Name),
				attribute.String("conduit.unit.kind", string(u.Kind)),
				attribute.Bool("conduit.unit.periodic", u.Periodic),
				attribute.String("conduit.job.id", u.JobID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
