// Package supervisor owns the source registry and the shared cancellation
// signal that every source task observes, coordinating cooperative
// shutdown the way the reference single-loop supervisor coordinates its
// shared stop event, generalized here to goroutines and a context.Context.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxline/pulsecore/internal/source"
)

// State is the supervisor's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// ErrorSink receives a source's error when it exits with a
// non-cancellation error, without aborting its siblings.
type ErrorSink func(name string, err error)

// Supervisor launches each registered source as an independent goroutine
// and surfaces per-source errors without aborting the others.
type Supervisor struct {
	bus     source.Publisher
	sources []source.Source
	onError ErrorSink

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an idle Supervisor over the given bus and sources.
func New(bus source.Publisher, sources []source.Source, onError ErrorSink) *Supervisor {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Supervisor{bus: bus, sources: sources, onError: onError, state: StateIdle}
}

// State reports the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches every source. Calling Start while already running is a
// no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	s.mu.Unlock()

	for _, src := range s.sources {
		s.wg.Add(1)
		go func(src source.Source) {
			defer s.wg.Done()
			err := src.Run(runCtx, s.bus)
			if err != nil && runCtx.Err() == nil {
				s.onError(src.Name(), fmt.Errorf("source %s exited: %w", src.Name(), err))
			}
		}(src)
	}
}

// Stop signals every source to exit and blocks until they have joined.
// Calling Stop while idle is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}
