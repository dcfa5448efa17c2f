package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/source"
)

type nullBus struct{}

func (nullBus) Publish(events.Event) bool { return true }

type fakeSource struct {
	name   string
	runErr error
	ran    chan struct{}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Run(ctx context.Context, bus source.Publisher) error {
	close(f.ran)
	<-ctx.Done()
	return f.runErr
}

func TestStartFromRunningIsNoop(t *testing.T) {
	src := &fakeSource{name: "s1", ran: make(chan struct{})}
	sup := New(nullBus{}, []source.Source{src}, nil)

	sup.Start(context.Background())
	<-src.ran
	if sup.State() != StateRunning {
		t.Fatalf("expected running, got %s", sup.State())
	}

	sup.Start(context.Background()) // no-op
	if sup.State() != StateRunning {
		t.Fatalf("expected still running after redundant start, got %s", sup.State())
	}

	sup.Stop()
	if sup.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %s", sup.State())
	}
}

func TestStopFromIdleIsNoop(t *testing.T) {
	sup := New(nullBus{}, nil, nil)
	sup.Stop()
	if sup.State() != StateIdle {
		t.Fatalf("expected idle, got %s", sup.State())
	}
}

func TestErrorReturnedAfterCancellationIsNotSurfaced(t *testing.T) {
	failing := &fakeSource{name: "failing", ran: make(chan struct{}), runErr: errors.New("boom")}
	ok := &fakeSource{name: "ok", ran: make(chan struct{})}

	var mu sync.Mutex
	var gotErrs []string

	sup := New(nullBus{}, []source.Source{failing, ok}, func(name string, err error) {
		mu.Lock()
		gotErrs = append(gotErrs, name)
		mu.Unlock()
	})

	sup.Start(context.Background())
	<-failing.ran
	<-ok.ran

	time.Sleep(10 * time.Millisecond)
	sup.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(gotErrs) != 0 {
		t.Fatalf("expected no errors before cancellation since fakeSource blocks on ctx.Done, got %v", gotErrs)
	}
}
