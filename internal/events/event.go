// Package events defines the immutable event record and the enumerations
// that describe where an event came from and what kind of thing it is.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which producer emitted an event.
type Source string

const (
	SourceLog    Source = "log"
	SourceSensor Source = "sensor"
	SourceFeed   Source = "feed"
)

func (s Source) Valid() bool {
	switch s {
	case SourceLog, SourceSensor, SourceFeed:
		return true
	default:
		return false
	}
}

// Type distinguishes a raw producer event from a derived one.
type Type string

const (
	TypeRaw        Type = "raw"
	TypeAggregated Type = "aggregated"
	TypeAlert      Type = "alert"
)

// LogLevel is the severity carried by a log source's payload.
type LogLevel string

const (
	LogDebug    LogLevel = "DEBUG"
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

// Event is an immutable unit of data flowing through the engine. Every
// field is set once at construction; "mutating" an Event means building a
// new one (see WithCorrelationID, WithTimestamp, Clone).
type Event struct {
	ID            string
	Source        Source
	EventType     Type
	Timestamp     time.Time
	Payload       map[string]any
	Tags          map[string]string
	CorrelationID string
}

// New constructs an Event with a fresh ID and the current UTC time as its
// timestamp (use WithTimestamp to override it). Payload and Tags are copied so the caller's maps
// can be reused or mutated afterward without reaching into the event.
func New(source Source, eventType Type, payload map[string]any, tags map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Source:    source,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   copyAny(payload),
		Tags:      copyString(tags),
	}
}

// WithCorrelationID returns a copy of e carrying the given correlation id.
func (e Event) WithCorrelationID(id string) Event {
	e.CorrelationID = id
	return e
}

// WithTimestamp returns a copy of e with its timestamp replaced. Naive
// (zero-location-aware callers may still pass a local time; UTC is applied
// by the window processor, not here, so this preserves whatever the caller
// intended.
func (e Event) WithTimestamp(ts time.Time) Event {
	e.Timestamp = ts
	return e
}

// Clone returns a deep-enough copy of e: a new Event value with its own
// Payload/Tags maps, so neither the original nor the clone can mutate the
// other's contents.
func (e Event) Clone() Event {
	e.Payload = copyAny(e.Payload)
	e.Tags = copyString(e.Tags)
	return e
}

func copyAny(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyString(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PayloadString returns payload[key] as a string, or the fallback if the
// key is absent or not a string. Aggregators rely on this to stay tolerant
// of missing keys, per the per-source payload contracts.
func (e Event) PayloadString(key, fallback string) string {
	if e.Payload == nil {
		return fallback
	}
	if v, ok := e.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// PayloadFloat returns payload[key] as a float64 and whether it was present
// and numeric.
func (e Event) PayloadFloat(key string) (float64, bool) {
	if e.Payload == nil {
		return 0, false
	}
	v, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// PayloadBool returns payload[key] as a bool and whether it was present and
// boolean-typed.
func (e Event) PayloadBool(key string) (bool, bool) {
	if e.Payload == nil {
		return false, false
	}
	v, ok := e.Payload[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// WindowMetadata describes the grid-aligned window an aggregate belongs to.
type WindowMetadata struct {
	Start time.Time
	End   time.Time
	Count int
}

// ToPayload renders the window metadata the way AggregatedPayload embeds it.
func (w WindowMetadata) ToPayload() map[string]any {
	return map[string]any{
		"start": w.Start.Format(time.RFC3339Nano),
		"end":   w.End.Format(time.RFC3339Nano),
		"count": w.Count,
	}
}
