package source

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

type collectingPublisher struct {
	mu   sync.Mutex
	seen []events.Event
}

func (c *collectingPublisher) Publish(e events.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, e)
	return true
}

func (c *collectingPublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func TestSensorSourceExitsOnCancel(t *testing.T) {
	pub := &collectingPublisher{}
	src := NewSensorSource(SensorConfig{SensorID: "s1", Interval: 5 * time.Millisecond}, rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, pub) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("source did not exit after context cancellation")
	}

	if pub.count() == 0 {
		t.Fatal("expected at least one event published before cancellation")
	}
}

func TestLogSourcePublishesValidLevels(t *testing.T) {
	pub := &collectingPublisher{}
	src := NewLogSource(LogConfig{ServiceName: "svc", Host: "h1", BaseInterval: 2 * time.Millisecond}, rand.New(rand.NewSource(2)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src.Run(ctx, pub)

	if pub.count() == 0 {
		t.Fatal("expected events to be published")
	}
	for _, e := range pub.seen {
		level := e.PayloadString("level", "")
		found := false
		for _, l := range logLevels {
			if string(l) == level {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected log level: %s", level)
		}
	}
}

func TestFeedSourceRespectsSuccessChance(t *testing.T) {
	pub := &collectingPublisher{}
	src := NewFeedSource(FeedConfig{
		Users:         []string{"u1"},
		Actions:       []string{"login"},
		Resources:     []string{"r1"},
		IntervalMin:   time.Millisecond,
		IntervalMax:   2 * time.Millisecond,
		SuccessChance: 1.0,
	}, rand.New(rand.NewSource(3)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src.Run(ctx, pub)

	if pub.count() == 0 {
		t.Fatal("expected events to be published")
	}
	for _, e := range pub.seen {
		ok, present := e.PayloadBool("success")
		if !present || !ok {
			t.Fatal("expected every feed event to succeed with SuccessChance=1.0")
		}
	}
}
