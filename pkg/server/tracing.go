package server

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the name of the tracer used for message spans.
const tracerName = "github.com/collabmd/collabmd/pkg/server"

func newTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startMessageSpan opens a span for one inbound client message.
func (s *Server) startMessageSpan(c *Conn, event string) (context.Context, trace.Span) {
	return s.tracer.Start(context.Background(), "collabmd.message "+event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("collabmd.event", event),
			attribute.String("collabmd.conn_id", c.ID),
		),
	)
}

// endMessageSpan records the handling result and ends the span.
func endMessageSpan(span trace.Span, sessionID string, err error) {
	if sessionID != "" {
		span.SetAttributes(attribute.String("collabmd.session_id", sessionID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
