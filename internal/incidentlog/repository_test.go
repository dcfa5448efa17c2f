package incidentlog

import "testing"

func TestIncidentStructFields(t *testing.T) {
	inc := Incident{ID: 1, Source: "sensor", Message: "panic: nil pointer"}
	if inc.Source != "sensor" {
		t.Errorf("expected source sensor, got %s", inc.Source)
	}
	if inc.Message == "" {
		t.Error("expected a non-empty message")
	}
}

func TestRepositoryCreationWithNilConnectionDoesNotPanic(t *testing.T) {
	defer func() {
		if p := recover(); p != nil {
			t.Errorf("repository creation panicked: %v", p)
		}
	}()

	repo := NewRepository(nil)
	if repo == nil {
		t.Error("expected non-nil repository")
	}
}

func TestDefaultConnectionConfigUsesDisabledSSLMode(t *testing.T) {
	cfg := DefaultConnectionConfig()
	if cfg.SSLMode != "disable" {
		t.Errorf("expected disable sslmode for local defaults, got %s", cfg.SSLMode)
	}
	if cfg.MaxOpenConns <= 0 {
		t.Error("expected a positive MaxOpenConns default")
	}
}
