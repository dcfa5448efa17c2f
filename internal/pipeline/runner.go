// Package pipeline drives the window processor and aggregators from a
// bus's merged queue, recording latency and window metrics and forwarding
// aggregate events to an output sink.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxline/pulsecore/internal/aggregate"
	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
	"github.com/fluxline/pulsecore/internal/tracing"
	"github.com/fluxline/pulsecore/internal/window"
)

// outputTimeout bounds how long the runner waits to hand an aggregate
// event to the output sink before dropping it.
const outputTimeout = 500 * time.Millisecond

// Hooks are optional injection points mirroring the reference pipeline's
// on_event/on_after_batch callbacks.
type Hooks struct {
	OnEvent      func(events.Event)
	OnAfterBatch func(context.Context)
}

// Runner drives one Processor/Registry pair from a merged event channel,
// forwarding aggregate events to an output channel.
type Runner struct {
	processor *window.Processor
	registry  *aggregate.Registry
	collector *metrics.Collector
	out       chan<- events.Event
	hooks     Hooks
}

// New constructs a Runner. out may be nil, in which case aggregate events
// are computed (and still recorded in metrics) but discarded.
func New(processor *window.Processor, registry *aggregate.Registry, collector *metrics.Collector, out chan<- events.Event, hooks Hooks) *Runner {
	return &Runner{processor: processor, registry: registry, collector: collector, out: out, hooks: hooks}
}

// Run consumes merged until ctx is cancelled, then flushes the final batch
// identically to a normal window transition.
func (r *Runner) Run(ctx context.Context, merged <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			r.flush(ctx)
			return
		case e, ok := <-merged:
			if !ok {
				r.flush(ctx)
				return
			}
			r.handle(ctx, e)
		}
	}
}

func (r *Runner) handle(ctx context.Context, e events.Event) {
	latencyMs := float64(time.Now().UTC().Sub(e.Timestamp).Microseconds()) / 1000.0
	r.collector.RecordProcessed(e.Source, latencyMs)

	batch, closed := r.processor.Push(e)

	if r.hooks.OnEvent != nil {
		r.hooks.OnEvent(e)
	}

	if closed {
		r.emitBatch(ctx, batch)
	}
}

func (r *Runner) flush(ctx context.Context) {
	batch, ok := r.processor.Flush()
	if !ok {
		return
	}
	r.emitBatch(ctx, batch)
}

func (r *Runner) emitBatch(ctx context.Context, batch window.Batch) {
	spanCtx, span := tracing.GetTracer("pipeline").Start(ctx, "pipeline.aggregateBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.event_count", len(batch.Events)),
		attribute.String("batch.start", batch.Start.Format(time.RFC3339)),
	)

	started := time.Now()

	countBySource := make(map[events.Source]int)
	for _, e := range batch.Events {
		countBySource[e.Source]++
	}

	aggregates := r.registry.Aggregate(batch)
	for _, agg := range aggregates {
		r.forward(ctx, agg)
		r.collector.RecordAggregated()
	}

	aggregationTimeMs := float64(time.Since(started).Microseconds()) / 1000.0
	r.collector.RecordWindow(batch.Start, batch.End, countBySource, len(aggregates), aggregationTimeMs)
	span.SetAttributes(attribute.Int("batch.aggregates_emitted", len(aggregates)))

	if r.hooks.OnAfterBatch != nil {
		r.hooks.OnAfterBatch(spanCtx)
	}
}

// forward hands e to the output channel, waiting at most outputTimeout or
// until ctx is cancelled, so a full, unconsumed sink doesn't wedge shutdown.
// A timeout (or cancellation) drops the event silently, matching the
// documented "sink overflow" failure mode: the core never blocks on the
// sink indefinitely.
func (r *Runner) forward(ctx context.Context, e events.Event) {
	if r.out == nil {
		return
	}

	timer := time.NewTimer(outputTimeout)
	defer timer.Stop()

	select {
	case r.out <- e:
	case <-timer.C:
	case <-ctx.Done():
	}
}
