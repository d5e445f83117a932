package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the store tracer
	TracerName = "github.com/roach88/ordinal/store"
)

// Attribute keys for positioning context
const (
	AttrCollection  = attribute.Key("ordinal.collection")
	AttrGroup       = attribute.Key("ordinal.group")
	AttrRecordID    = attribute.Key("ordinal.record.id")
	AttrPosition    = attribute.Key("ordinal.position")
	AttrShiftRange  = attribute.Key("ordinal.shift.range")
	AttrShiftDelta  = attribute.Key("ordinal.shift.delta")
	AttrAffected    = attribute.Key("ordinal.shift.affected")
	AttrResultCount = attribute.Key("result.count")
)

// DBSystemSQLite is the database system attribute for SQLite
var DBSystemSQLite = semconv.DBSystemSqlite

// startSpan starts a new span for store operations.
// If the tracer is nil, it returns a no-op span from the context.
// All store spans include the db.system attribute per OTEL semantic conventions.
func (s *Store) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	opts = append([]trace.SpanStartOption{trace.WithAttributes(DBSystemSQLite)}, opts...)
	return s.tracer.Start(ctx, name, opts...)
}

// recordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic so SQL text never lands in trace
// status; the full error is still available as a span event.
func recordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
