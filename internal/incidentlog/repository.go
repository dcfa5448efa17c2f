package incidentlog

import (
	"context"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS source_incidents (
	id SERIAL PRIMARY KEY,
	source VARCHAR(32) NOT NULL,
	message TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Incident records one source crash observed by the supervisor.
type Incident struct {
	ID         int64
	Source     string
	Message    string
	OccurredAt time.Time
}

// Repository persists and queries source crash incidents.
type Repository struct {
	conn *Connection
}

// NewRepository wraps conn. EnsureSchema must be called once before use.
func NewRepository(conn *Connection) *Repository {
	return &Repository{conn: conn}
}

// EnsureSchema creates the incident table if it does not already exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.conn.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("incidentlog: ensure schema: %w", err)
	}
	return nil
}

// Record inserts a new incident row. Intended to be wired as an
// engine.OnSourceError callback.
func (r *Repository) Record(ctx context.Context, source, message string) error {
	const q = `INSERT INTO source_incidents (source, message) VALUES ($1, $2)`
	if _, err := r.conn.DB().ExecContext(ctx, q, source, message); err != nil {
		return fmt.Errorf("incidentlog: record incident: %w", err)
	}
	return nil
}

// Recent returns the most recent incidents, newest first, bounded by limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Incident, error) {
	const q = `
		SELECT id, source, message, occurred_at
		FROM source_incidents
		ORDER BY occurred_at DESC
		LIMIT $1`

	rows, err := r.conn.DB().QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: query recent: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		if err := rows.Scan(&inc.ID, &inc.Source, &inc.Message, &inc.OccurredAt); err != nil {
			return nil, fmt.Errorf("incidentlog: scan incident: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("incidentlog: iterate incidents: %w", err)
	}
	return out, nil
}

// CountSince returns the number of incidents for source since the given time.
func (r *Repository) CountSince(ctx context.Context, source string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*) FROM source_incidents
		WHERE source = $1 AND occurred_at >= $2`

	var count int
	if err := r.conn.DB().QueryRowContext(ctx, q, source, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("incidentlog: count since: %w", err)
	}
	return count, nil
}
