// Package engine wires the bus, sources, supervisor, and pipeline into the
// single embeddable entry point a host UI or CLI drives.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/fluxline/pulsecore/internal/aggregate"
	"github.com/fluxline/pulsecore/internal/bus"
	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
	"github.com/fluxline/pulsecore/internal/pipeline"
	"github.com/fluxline/pulsecore/internal/source"
	"github.com/fluxline/pulsecore/internal/supervisor"
	"github.com/fluxline/pulsecore/internal/window"
)

// Config is the engine's single external configuration record.
type Config struct {
	StressMode bool

	PerSourceQueueSize int
	MergedQueueSize    int
	DropOnFull         bool

	WindowSize      time.Duration
	ArtificialDelay time.Duration

	LogBaseInterval     time.Duration
	LogBurstInterval    time.Duration
	LogBurstProbability float64

	EventRateLimit  time.Duration
	MetricsInterval time.Duration
}

// DefaultConfig returns a Config with the reference defaults.
func DefaultConfig() Config {
	return Config{
		PerSourceQueueSize:  64,
		MergedQueueSize:     256,
		DropOnFull:          true,
		WindowSize:          5 * time.Second,
		LogBaseInterval:     1500 * time.Millisecond,
		LogBurstInterval:    200 * time.Millisecond,
		LogBurstProbability: 0.1,
		EventRateLimit:      100 * time.Millisecond,
		MetricsInterval:     2 * time.Second,
	}
}

// ApplyStressMode clamps the config's tunables to aggressive values when
// StressMode is set, using the documented min/max clamp table.
func (c Config) ApplyStressMode() Config {
	if !c.StressMode {
		return c
	}
	c.PerSourceQueueSize = minInt(c.PerSourceQueueSize, 2)
	c.MergedQueueSize = minInt(c.MergedQueueSize, 5)
	if c.ArtificialDelay < 30*time.Millisecond {
		c.ArtificialDelay = 30 * time.Millisecond
	}
	if c.LogBaseInterval > 60*time.Millisecond {
		c.LogBaseInterval = 60 * time.Millisecond
	}
	if c.LogBurstInterval > 10*time.Millisecond {
		c.LogBurstInterval = 10 * time.Millisecond
	}
	if c.LogBurstProbability < 0.9 {
		c.LogBurstProbability = 0.9
	}
	return c
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Message is a tagged envelope handed to the host sink.
type Message struct {
	Type string // "event", "agg", or "metrics"
	TS   time.Time
	Data any
}

// OutSink receives tagged messages from a running engine. Implementations
// must not block: Send is called from the engine's hot path.
type OutSink interface {
	Send(Message)
}

// OutSinkFunc adapts a function to OutSink.
type OutSinkFunc func(Message)

func (f OutSinkFunc) Send(m Message) { f(m) }

// Engine owns the bus, sources, supervisor, and pipeline for one run.
type Engine struct {
	cfg     Config
	bus     *bus.Bus
	sources []source.Source

	mu      sync.Mutex
	onError func(name string, err error)

	collector *metrics.Collector
	aggOut    chan events.Event

	rateMu   sync.Mutex
	lastSeen map[events.Source]time.Time
}

// New builds an Engine ready to Run. sources is the set of long-running
// producers the supervisor will launch.
func New(cfg Config, sources []source.Source) *Engine {
	cfg = cfg.ApplyStressMode()

	collector := metrics.NewCollector()

	policy := bus.PolicyBlock
	if cfg.DropOnFull {
		policy = bus.PolicyDrop
	}

	b := bus.New(bus.Config{
		Capacity:  cfg.MergedQueueSize,
		Policy:    policy,
		Collector: collector,
	}, []events.Source{events.SourceSensor, events.SourceLog, events.SourceFeed})

	return &Engine{
		cfg:       cfg,
		bus:       b,
		sources:   sources,
		collector: collector,
		aggOut:    make(chan events.Event, cfg.MergedQueueSize),
		lastSeen:  make(map[events.Source]time.Time),
	}
}

// OnSourceError installs a handler for source crashes, called from the
// supervisor's done-handler without aborting sibling sources.
func (e *Engine) OnSourceError(fn func(name string, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// Bus exposes the underlying bus for direct publish access.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Collector exposes the metrics collector for snapshot polling.
func (e *Engine) Collector() *metrics.Collector { return e.collector }

// shouldEmitRaw rate-limits raw "event" forwarding to at most one per
// EventRateLimit interval per source, to protect a slow host sink.
func (e *Engine) shouldEmitRaw(src events.Source) bool {
	e.rateMu.Lock()
	defer e.rateMu.Unlock()
	now := time.Now()
	if last, ok := e.lastSeen[src]; ok && now.Sub(last) < e.cfg.EventRateLimit {
		return false
	}
	e.lastSeen[src] = now
	return true
}

// Run starts the supervisor and pipeline, forwards rate-limited raw
// events, aggregate events, and periodic metrics snapshots to out, and
// blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, out OutSink) {
	e.mu.Lock()
	onError := e.onError
	e.mu.Unlock()

	sup := supervisor.New(e.bus, e.sources, onError)

	proc := window.NewProcessor(e.cfg.WindowSize, nil, nil)
	reg := aggregate.NewRegistry()

	hooks := pipeline.Hooks{
		OnEvent: func(ev events.Event) {
			if out == nil || !e.shouldEmitRaw(ev.Source) {
				return
			}
			out.Send(Message{Type: "event", TS: time.Now().UTC(), Data: ev})
		},
	}
	if e.cfg.ArtificialDelay > 0 {
		hooks.OnAfterBatch = func(ctx context.Context) {
			select {
			case <-time.After(e.cfg.ArtificialDelay):
			case <-ctx.Done():
			}
		}
	}

	runner := pipeline.New(proc, reg, e.collector, e.aggOut, hooks)

	sup.Start(ctx)
	defer sup.Stop()

	go runner.Run(ctx, e.bus.Merged())

	ticker := time.NewTicker(e.cfg.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drainRemaining(out)
			return
		case agg, ok := <-e.aggOut:
			if !ok {
				continue
			}
			if out != nil {
				out.Send(Message{Type: "agg", TS: time.Now().UTC(), Data: agg})
			}
		case <-ticker.C:
			if out != nil {
				out.Send(Message{Type: "metrics", TS: time.Now().UTC(), Data: e.collector.Snapshot()})
			}
		}
	}
}

// drainRemaining flushes any aggregate events already queued before the
// engine loop exits, so a shutdown doesn't silently lose a just-closed
// window's output.
func (e *Engine) drainRemaining(out OutSink) {
	for {
		select {
		case agg, ok := <-e.aggOut:
			if !ok {
				return
			}
			if out != nil {
				out.Send(Message{Type: "agg", TS: time.Now().UTC(), Data: agg})
			}
		default:
			return
		}
	}
}

// NewRNG returns a seeded RNG for source construction, kept here so
// callers don't each need a math/rand import just to build a source.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
