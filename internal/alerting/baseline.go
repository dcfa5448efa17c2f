// Package alerting watches aggregate events for statistical deviation
// from a rolling per-source baseline, adapted from the teacher's
// diagnosis engine but generalized from fixed network-latency fields to
// an open field-extractor map so any aggregator's numeric output can be
// monitored the same way.
package alerting

import (
	"math"

	"github.com/fluxline/pulsecore/internal/events"
)

// FieldExtractor pulls the numeric value to baseline from one source's
// aggregate payload. Returns ok=false when the field is absent (for
// example a sensor window with zero samples reports a null average).
type FieldExtractor func(agg events.Event) (value float64, ok bool)

// DefaultExtractors covers the built-in aggregators' most meaningful
// numeric field: sensor average value and feed success rate. Log
// aggregates have no single natural scalar and are left unmonitored.
func DefaultExtractors() map[events.Source]FieldExtractor {
	return map[events.Source]FieldExtractor{
		events.SourceSensor: func(agg events.Event) (float64, bool) {
			return agg.PayloadFloat("value")
		},
		events.SourceFeed: func(agg events.Event) (float64, bool) {
			return agg.PayloadFloat("success_rate")
		},
	}
}

const (
	defaultHistorySize = 20
	defaultMinSamples  = 5
	sigmaThreshold     = 2.0
)

// Detector maintains a rolling mean/stddev per source and flags windows
// whose baselined field deviates by more than sigmaThreshold standard
// deviations.
type Detector struct {
	extractors  map[events.Source]FieldExtractor
	historySize int
	minSamples  int
	history     map[events.Source][]float64
}

// NewDetector builds a Detector watching the given fields, keeping the
// last historySize samples per source as its rolling baseline.
func NewDetector(extractors map[events.Source]FieldExtractor, historySize int) *Detector {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Detector{
		extractors:  extractors,
		historySize: historySize,
		minSamples:  defaultMinSamples,
		history:     make(map[events.Source][]float64),
	}
}

// Observe records agg's extracted value and, if enough history has
// accumulated, returns an alert event when the value falls outside the
// source's rolling 2-sigma band. The current value is folded into the
// baseline regardless of whether it triggers an alert, so a sustained
// regime change is absorbed rather than alerted on forever.
func (d *Detector) Observe(agg events.Event) (events.Event, bool) {
	extract, ok := d.extractors[agg.Source]
	if !ok {
		return events.Event{}, false
	}
	value, ok := extract(agg)
	if !ok {
		return events.Event{}, false
	}

	history := d.history[agg.Source]
	var alert events.Event
	fired := false

	if len(history) >= d.minSamples {
		mean, stddev := meanStdDev(history)
		if math.Abs(value-mean) > sigmaThreshold*stddev {
			alert = events.New(agg.Source, events.TypeAlert, map[string]any{
				"field":    fieldName(agg.Source),
				"value":    value,
				"baseline": mean,
				"stddev":   stddev,
				"window":   agg.Payload["window"],
			}, nil)
			fired = true
		}
	}

	history = append(history, value)
	if len(history) > d.historySize {
		history = history[len(history)-d.historySize:]
	}
	d.history[agg.Source] = history

	return alert, fired
}

func fieldName(src events.Source) string {
	switch src {
	case events.SourceSensor:
		return "value"
	case events.SourceFeed:
		return "success_rate"
	default:
		return "value"
	}
}

func meanStdDev(xs []float64) (mean, stddev float64) {
	n := float64(len(xs))
	for _, x := range xs {
		mean += x
	}
	mean /= n

	var variance float64
	for _, x := range xs {
		variance += math.Pow(x-mean, 2)
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
