// Package relay optionally mirrors aggregate/alert events and metrics
// snapshots onto a NATS JetStream stream for external consumers, adapted
// from the teacher's at-least-once ingestion processor but trimmed to a
// fire-and-forget publisher: the engine's own bus is the ingestion path,
// this is a side mirror.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
)

const (
	StreamName   = "pulsecore-events"
	SubjectAgg   = "pulsecore.events.agg"
	SubjectAlert = "pulsecore.events.alert"
	SubjectStats = "pulsecore.metrics"
)

// Config configures a NATS relay.
type Config struct {
	URL             string
	StreamRetention time.Duration
	ReconnectWait   time.Duration
	MaxReconnects   int
}

// DefaultConfig returns sensible relay defaults.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamRetention: 24 * time.Hour,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
	}
}

// Relay mirrors engine output onto NATS JetStream. It implements
// metrics.Sink so it can be driven through the same fan-out as the
// dashboard hub.
type Relay struct {
	cfg Config
	nc  *nats.Conn
	js  jetstream.JetStream
	ctx context.Context
}

// Connect dials NATS and ensures the mirror stream exists.
func Connect(ctx context.Context, cfg Config) (*Relay, error) {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("relay: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("relay: NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay: connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("relay: create jetstream context: %w", err)
	}

	r := &Relay{cfg: cfg, nc: nc, js: js, ctx: ctx}

	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectAgg, SubjectAlert, SubjectStats},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.StreamRetention,
		Discard:     jetstream.DiscardOld,
		Description: "aggregate/alert/metrics mirror stream",
	}
	if _, err := js.CreateOrUpdateStream(ctx, streamCfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("relay: create stream: %w", err)
	}

	return r, nil
}

// BroadcastEvent implements metrics.Sink. Aggregate and alert events are
// published; raw events are ignored. Events that carry a
// caller-supplied correlation id get it hashed into a message header
// instead of relied on verbatim, so an external consumer can still group
// related events without the relay handing out an unbounded-cardinality
// raw identifier.
func (r *Relay) BroadcastEvent(e events.Event) {
	var subject string
	switch e.EventType {
	case events.TypeAggregated:
		subject = SubjectAgg
	case events.TypeAlert:
		subject = SubjectAlert
	default:
		return
	}
	data, err := json.Marshal(e.WithCorrelationID(""))
	if err != nil {
		log.Printf("relay: marshal event %s: %v", e.ID, err)
		return
	}

	msg := &nats.Msg{Subject: subject, Data: data}
	if e.CorrelationID != "" {
		msg.Header = nats.Header{}
		msg.Header.Set("X-Correlation-Hash", metrics.HashCorrelationID(e.CorrelationID))
	}

	if _, err := r.js.PublishMsgAsync(msg); err != nil {
		log.Printf("relay: publish event %s: %v", e.ID, err)
	}
}

// BroadcastSnapshot implements metrics.Sink.
func (r *Relay) BroadcastSnapshot(snap metrics.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("relay: marshal snapshot: %v", err)
		return
	}
	if _, err := r.js.PublishAsync(SubjectStats, data); err != nil {
		log.Printf("relay: publish snapshot: %v", err)
	}
}

// Close implements metrics.Sink.
func (r *Relay) Close() {
	r.nc.Close()
}
