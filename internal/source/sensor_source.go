package source

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

// SensorConfig configures a SensorSource.
type SensorConfig struct {
	SensorID           string
	Metric             string
	Unit               string
	BaseValue          float64
	NoiseStd           float64
	DriftPerMinute     float64
	AnomalyProbability float64
	Interval           time.Duration
	Location           string
}

// SensorSource emits numeric readings that accumulate drift over real
// elapsed time, carry gaussian noise, and occasionally jump by ±10 as a
// rare anomaly.
type SensorSource struct {
	cfg SensorConfig
	rng *rand.Rand

	drift           float64
	lastDriftUpdate time.Time
}

// NewSensorSource returns a SensorSource with sensible defaults filled in.
func NewSensorSource(cfg SensorConfig, rng *rand.Rand) *SensorSource {
	if cfg.Metric == "" {
		cfg.Metric = "temperature"
	}
	if cfg.BaseValue == 0 {
		cfg.BaseValue = 20.0
	}
	if cfg.NoiseStd == 0 {
		cfg.NoiseStd = 0.3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &SensorSource{cfg: cfg, rng: rng, lastDriftUpdate: time.Now()}
}

func (s *SensorSource) Name() string { return fmt.Sprintf("sensor:%s", s.cfg.SensorID) }

func (s *SensorSource) updateDrift() {
	now := time.Now()
	elapsedMinutes := now.Sub(s.lastDriftUpdate).Minutes()
	s.drift += elapsedMinutes * s.cfg.DriftPerMinute
	s.lastDriftUpdate = now
}

func (s *SensorSource) generateValue() float64 {
	noise := s.rng.NormFloat64() * s.cfg.NoiseStd
	value := s.cfg.BaseValue + s.drift + noise

	if s.rng.Float64() < s.cfg.AnomalyProbability {
		if s.rng.Float64() < 0.5 {
			value -= 10
		} else {
			value += 10
		}
	}

	return math.Round(value*1000) / 1000
}

// Run implements Source.
func (s *SensorSource) Run(ctx context.Context, bus Publisher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.updateDrift()
		payload := map[string]any{
			"sensor_id": s.cfg.SensorID,
			"metric":    s.cfg.Metric,
			"value":     s.generateValue(),
			"unit":      s.cfg.Unit,
		}
		if s.cfg.Location != "" {
			payload["location"] = s.cfg.Location
		}

		tags := map[string]string{"metric": s.cfg.Metric, "sensor_id": s.cfg.SensorID}
		e := events.New(events.SourceSensor, events.TypeRaw, payload, tags)
		bus.Publish(e)

		if !sleep(ctx, s.cfg.Interval) {
			return nil
		}
	}
}
