package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

// LogConfig configures a LogSource.
type LogConfig struct {
	ServiceName     string
	Host            string
	BaseInterval    time.Duration
	BurstInterval   time.Duration
	BurstProbability float64
}

var logMessages = map[events.LogLevel]string{
	events.LogDebug:    "Debugging internal state",
	events.LogInfo:     "Operation completed successfully",
	events.LogWarning:  "Potential issue detected",
	events.LogError:    "Error while processing request",
	events.LogCritical: "System failure",
}

var logLevels = []events.LogLevel{
	events.LogDebug, events.LogInfo, events.LogWarning, events.LogError, events.LogCritical,
}

var logLevelWeights = []float64{0.4, 0.35, 0.15, 0.08, 0.02}

// LogSource emits synthetic log lines with a weighted level distribution
// and an occasional burst of tighter intervals.
type LogSource struct {
	cfg LogConfig
	rng *rand.Rand
}

// NewLogSource returns a LogSource with sensible defaults filled in.
func NewLogSource(cfg LogConfig, rng *rand.Rand) *LogSource {
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = 1500 * time.Millisecond
	}
	if cfg.BurstInterval <= 0 {
		cfg.BurstInterval = 200 * time.Millisecond
	}
	if cfg.BurstProbability == 0 {
		cfg.BurstProbability = 0.1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &LogSource{cfg: cfg, rng: rng}
}

func (s *LogSource) Name() string { return fmt.Sprintf("log:%s", s.cfg.ServiceName) }

func (s *LogSource) chooseLevel() events.LogLevel {
	r := s.rng.Float64()
	var cumulative float64
	for i, w := range logLevelWeights {
		cumulative += w
		if r < cumulative {
			return logLevels[i]
		}
	}
	return logLevels[len(logLevels)-1]
}

func (s *LogSource) chooseInterval() time.Duration {
	if s.rng.Float64() < s.cfg.BurstProbability {
		return s.cfg.BurstInterval
	}
	return s.cfg.BaseInterval
}

// Run implements Source.
func (s *LogSource) Run(ctx context.Context, bus Publisher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		level := s.chooseLevel()
		payload := map[string]any{
			"level":   string(level),
			"message": logMessages[level],
			"service": s.cfg.ServiceName,
			"host":    s.cfg.Host,
		}
		tags := map[string]string{"service": s.cfg.ServiceName, "level": string(level)}

		e := events.New(events.SourceLog, events.TypeRaw, payload, tags)
		bus.Publish(e)

		if !sleep(ctx, s.chooseInterval()) {
			return nil
		}
	}
}
