package dashboard

import (
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
)

func newTestClient() *Client {
	return &Client{id: "test-client", send: make(chan *Message, 8)}
}

func TestSubscribeRoutesMessagesToMatchingChannelOnly(t *testing.T) {
	h := NewHub()
	c := newTestClient()
	h.clients[c] = true
	h.Subscribe(c, []string{ChannelAgg})

	h.deliver(&Message{Type: "update", Channel: ChannelAgg, Data: "payload"})
	h.deliver(&Message{Type: "update", Channel: ChannelAlert, Data: "should not arrive"})

	select {
	case msg := <-c.send:
		if msg.Channel != ChannelAgg {
			t.Fatalf("expected agg channel message, got %s", msg.Channel)
		}
	default:
		t.Fatal("expected subscribed client to receive the agg message")
	}

	select {
	case msg := <-c.send:
		t.Fatalf("expected no further messages, got %+v", msg)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	c := newTestClient()
	h.clients[c] = true
	h.Subscribe(c, []string{ChannelMetrics})
	h.Unsubscribe(c, []string{ChannelMetrics})

	h.deliver(&Message{Type: "update", Channel: ChannelMetrics, Data: "payload"})

	select {
	case msg := <-c.send:
		t.Fatalf("expected no message after unsubscribe, got %+v", msg)
	default:
	}
}

func TestBroadcastEventRoutesAlertsSeparatelyFromAggregates(t *testing.T) {
	h := NewHub()
	aggClient := newTestClient()
	alertClient := newTestClient()
	h.clients[aggClient] = true
	h.clients[alertClient] = true
	h.Subscribe(aggClient, []string{ChannelAgg})
	h.Subscribe(alertClient, []string{ChannelAlert})

	agg := events.New(events.SourceSensor, events.TypeAggregated, map[string]any{"avg": 1.0}, nil)
	alert := events.New(events.SourceSensor, events.TypeAlert, map[string]any{"reason": "threshold"}, nil)

	h.BroadcastEvent(agg)
	h.BroadcastEvent(alert)

	select {
	case msg := <-h.broadcast:
		h.deliver(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for agg broadcast")
	}
	select {
	case msg := <-h.broadcast:
		h.deliver(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert broadcast")
	}

	select {
	case msg := <-aggClient.send:
		if msg.Channel != ChannelAgg {
			t.Fatalf("expected agg client to get agg message, got %s", msg.Channel)
		}
	default:
		t.Fatal("expected agg client to receive a message")
	}
	select {
	case msg := <-alertClient.send:
		if msg.Channel != ChannelAlert {
			t.Fatalf("expected alert client to get alert message, got %s", msg.Channel)
		}
	default:
		t.Fatal("expected alert client to receive a message")
	}
}

func TestBroadcastEventRoutesRawEventsToEventChannel(t *testing.T) {
	h := NewHub()
	c := newTestClient()
	h.clients[c] = true
	h.Subscribe(c, []string{ChannelEvent})

	raw := events.New(events.SourceLog, events.TypeRaw, map[string]any{"message": "hi"}, nil)
	h.BroadcastEvent(raw)

	select {
	case msg := <-h.broadcast:
		h.deliver(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for raw event broadcast")
	}

	select {
	case msg := <-c.send:
		if msg.Channel != ChannelEvent {
			t.Fatalf("expected event channel, got %s", msg.Channel)
		}
	default:
		t.Fatal("expected client to receive the raw event message")
	}
}

func TestBroadcastSnapshotGoesToMetricsChannel(t *testing.T) {
	h := NewHub()
	c := newTestClient()
	h.clients[c] = true
	h.Subscribe(c, []string{ChannelMetrics})

	h.BroadcastSnapshot(metrics.Snapshot{IngestedTotal: 42})

	select {
	case msg := <-h.broadcast:
		h.deliver(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot broadcast")
	}

	select {
	case msg := <-c.send:
		if msg.Channel != ChannelMetrics {
			t.Fatalf("expected metrics channel, got %s", msg.Channel)
		}
	default:
		t.Fatal("expected client to receive the snapshot message")
	}
}
