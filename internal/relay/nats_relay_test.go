package relay

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.URL != nats.DefaultURL {
		t.Errorf("expected default URL %s, got %s", nats.DefaultURL, cfg.URL)
	}
	if cfg.StreamRetention != 24*time.Hour {
		t.Errorf("expected 24h retention, got %v", cfg.StreamRetention)
	}
	if cfg.MaxReconnects != -1 {
		t.Errorf("expected unlimited reconnects, got %d", cfg.MaxReconnects)
	}
}

// TestRelayPublishAndMirror exercises a live connect/publish round trip.
// Requires a running NATS server with JetStream enabled; skipped otherwise.
func TestRelayPublishAndMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := DefaultConfig()
	cfg.URL = "nats://localhost:4222"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := Connect(ctx, cfg)
	if err != nil {
		t.Skipf("NATS server not available: %v", err)
		return
	}
	defer r.Close()

	agg := events.New(events.SourceSensor, events.TypeAggregated, map[string]any{"avg": 1.0}, nil).WithCorrelationID("req-123")
	r.BroadcastEvent(agg)

	alert := events.New(events.SourceSensor, events.TypeAlert, map[string]any{"reason": "threshold"}, nil)
	r.BroadcastEvent(alert)

	r.BroadcastSnapshot(metrics.Snapshot{IngestedTotal: 42})
}
