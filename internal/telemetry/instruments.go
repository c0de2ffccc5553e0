package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instruments are created lazily from the current global meter so callers
// never hold instruments from a provider that Init has since replaced.
type instruments struct {
	ops     metric.Int64Counter
	errs    metric.Int64Counter
	dur     metric.Float64Histogram
	moves   metric.Int64Counter
	retries metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     *instruments
)

func resetInstruments() {
	instOnce = sync.Once{}
	inst = nil
}

func get() *instruments {
	instOnce.Do(func() {
		m := Meter()
		i := &instruments{}
		i.ops, _ = m.Int64Counter("sb.operations",
			metric.WithDescription("Board operations executed"))
		i.errs, _ = m.Int64Counter("sb.operation.errors",
			metric.WithDescription("Board operations that failed"))
		i.dur, _ = m.Float64Histogram("sb.operation.duration",
			metric.WithDescription("Board operation duration in milliseconds"),
			metric.WithUnit("ms"))
		i.moves, _ = m.Int64Counter("sb.task.moves",
			metric.WithDescription("Task moves committed, by kind (reorder or transfer)"))
		i.retries, _ = m.Int64Counter("sb.tx.retries",
			metric.WithDescription("Transactions retried after a serialization conflict"))
		inst = i
	})
	return inst
}

// Op starts a span for the named operation. The returned function ends it,
// recording duration and the error (if any) passed to it.
//
//	ctx, end := telemetry.Op(ctx, "task.move", attribute.String("task.id", id))
//	defer func() { end(err) }()
func Op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	all := append([]attribute.KeyValue{attribute.String("sb.operation", name)}, attrs...)
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(all...))
	i := get()
	i.ops.Add(ctx, 1, metric.WithAttributes(all[0]))
	start := time.Now()
	return ctx, func(err error) {
		i.dur.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(all[0]))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			i.errs.Add(ctx, 1, metric.WithAttributes(all[0]))
		}
		span.End()
	}
}

// TaskMoved counts a committed move. kind is "reorder" or "transfer".
func TaskMoved(ctx context.Context, kind string) {
	get().moves.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// TxRetried counts a transaction attempt abandoned for a retry.
func TxRetried(ctx context.Context) {
	get().retries.Add(ctx, 1)
}
