package source

import (
	"context"
	"math/rand"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

// FeedConfig configures a FeedSource.
type FeedConfig struct {
	Name          string
	Users         []string
	Actions       []string
	Resources     []string
	IntervalMin   time.Duration
	IntervalMax   time.Duration
	SuccessChance float64
}

// FeedSource emits synthetic user-action events (logins, purchases, and
// the like) with a fixed success ratio.
type FeedSource struct {
	cfg FeedConfig
	rng *rand.Rand
}

// NewFeedSource returns a FeedSource with sensible defaults filled in.
func NewFeedSource(cfg FeedConfig, rng *rand.Rand) *FeedSource {
	if cfg.IntervalMin <= 0 {
		cfg.IntervalMin = 2 * time.Second
	}
	if cfg.IntervalMax <= cfg.IntervalMin {
		cfg.IntervalMax = cfg.IntervalMin + 2*time.Second
	}
	if cfg.SuccessChance == 0 {
		cfg.SuccessChance = 0.9
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &FeedSource{cfg: cfg, rng: rng}
}

func (s *FeedSource) Name() string {
	if s.cfg.Name != "" {
		return "feed:" + s.cfg.Name
	}
	return "feed"
}

func (s *FeedSource) choice(xs []string) string {
	if len(xs) == 0 {
		return "unknown"
	}
	return xs[s.rng.Intn(len(xs))]
}

func (s *FeedSource) nextInterval() time.Duration {
	span := s.cfg.IntervalMax - s.cfg.IntervalMin
	return s.cfg.IntervalMin + time.Duration(s.rng.Int63n(int64(span)+1))
}

// Run implements Source.
func (s *FeedSource) Run(ctx context.Context, bus Publisher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		action := s.choice(s.cfg.Actions)
		success := s.rng.Float64() < s.cfg.SuccessChance

		payload := map[string]any{
			"user_id":  s.choice(s.cfg.Users),
			"action":   action,
			"resource": s.choice(s.cfg.Resources),
			"success":  success,
		}
		tags := map[string]string{"action": action}

		e := events.New(events.SourceFeed, events.TypeRaw, payload, tags)
		bus.Publish(e)

		if !sleep(ctx, s.nextInterval()) {
			return nil
		}
	}
}
