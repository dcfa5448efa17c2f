package metrics

import (
	"github.com/fluxline/pulsecore/internal/events"
)

// Sink receives fan-out notifications of engine output (events and metrics
// snapshots) without the sender needing to know who is actually listening
// (a websocket hub, a NATS relay, nothing at all). This keeps the metrics
// package free of any direct dependency on the dashboard's transport.
type Sink interface {
	BroadcastEvent(e events.Event)
	BroadcastSnapshot(snap Snapshot)
	Close()
}

// NullSink discards everything.
type NullSink struct{}

func NewNullSink() *NullSink { return &NullSink{} }

func (n *NullSink) BroadcastEvent(events.Event)    {}
func (n *NullSink) BroadcastSnapshot(Snapshot)     {}
func (n *NullSink) Close()                         {}

// FanoutSink broadcasts to every member sink, so one caller can drive a
// dashboard hub and a NATS relay from a single call site. With no member
// sinks it discards everything.
type FanoutSink struct {
	sinks []Sink
}

func NewFanoutSink(sinks ...Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (f *FanoutSink) BroadcastEvent(e events.Event) {
	for _, s := range f.sinks {
		s.BroadcastEvent(e)
	}
}

func (f *FanoutSink) BroadcastSnapshot(snap Snapshot) {
	for _, s := range f.sinks {
		s.BroadcastSnapshot(snap)
	}
}

func (f *FanoutSink) Close() {
	for _, s := range f.sinks {
		s.Close()
	}
}
