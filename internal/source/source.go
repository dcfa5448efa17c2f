// Package source implements the long-running producer tasks (log, sensor,
// feed) that publish to a bus until their context is cancelled.
package source

import (
	"context"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

// Publisher is the subset of bus.Bus a source needs.
type Publisher interface {
	Publish(e events.Event) bool
}

// Source is a long-running producer task.
type Source interface {
	// Run publishes events until ctx is cancelled, sleeping a
	// source-specific interval between iterations. Run returns nil on
	// cooperative cancellation.
	Run(ctx context.Context, bus Publisher) error
	Name() string
}

// sleep waits for d or ctx cancellation, whichever comes first, returning
// false if the context was cancelled during the wait.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
