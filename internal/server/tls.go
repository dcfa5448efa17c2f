// Package server wraps http.Server with optional TLS, adapted from the
// teacher's generic server wrapper and narrowed to the one knob this repo
// actually exercises through config: enabled/cert/key/min-version, with
// the unimplemented AutoTLS path dropped and lifecycle events routed
// through platformlog instead of the standard logger.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxline/pulsecore/internal/platformlog"
)

// TLSConfig holds TLS settings for a Server.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	// MinVersion selects the minimum TLS version ("1.2" or "1.3"); defaults
	// to TLS 1.2 when empty or unrecognized.
	MinVersion string
}

// Server wraps http.Server with TLS support.
type Server struct {
	httpServer *http.Server
	tlsConfig  *TLSConfig
	log        *slog.Logger
}

// NewServer creates a Server with optional TLS support.
func NewServer(addr string, handler http.Handler, tlsConfig *TLSConfig) *Server {
	httpServer := &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if tlsConfig != nil && tlsConfig.Enabled {
		httpServer.TLSConfig = &tls.Config{
			MinVersion:               tlsVersion(tlsConfig.MinVersion),
			PreferServerCipherSuites: true,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			},
		}
	}

	logger := platformlog.Slog()
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{httpServer: httpServer, tlsConfig: tlsConfig, log: logger}
}

// Start starts the server, over TLS if configured. Blocks until the
// server stops; returns nil on a clean Shutdown.
func (s *Server) Start() error {
	if s.tlsConfig != nil && s.tlsConfig.Enabled {
		s.log.Info("starting https server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServeTLS(s.tlsConfig.CertFile, s.tlsConfig.KeyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("https server: %w", err)
		}
		return nil
	}

	s.log.Info("starting http server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts the server down within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down http server", "addr", s.httpServer.Addr)
	return s.httpServer.Shutdown(ctx)
}

func tlsVersion(version string) uint16 {
	switch version {
	case "1.3", "TLS1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
