package metrics

import (
	"crypto/sha256"
	"fmt"
)

// HashLabel compresses an arbitrary label value into a short, bounded hash
// so it can be attached to a Prometheus label without inflating series
// cardinality. Returns the first 8 hex characters of the value's SHA256.
func HashLabel(value string) string {
	if value == "" {
		return "unknown"
	}

	hash := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", hash[:4])
}

// HashCorrelationID hashes an event's correlation id before it leaves the
// process (the NATS relay puts it in a message header), since correlation
// ids are caller-supplied and otherwise unbounded in cardinality.
func HashCorrelationID(correlationID string) string {
	return HashLabel(correlationID)
}
