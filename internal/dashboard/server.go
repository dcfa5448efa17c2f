package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server serves the dashboard websocket endpoint and internal broadcast
// webhook behind an http.Server, and drives the Hub's event loop.
type Server struct {
	hub     *Hub
	handler *Handler
	httpSrv *http.Server
}

// NewServer builds a Server listening on addr. auth gates websocket
// upgrades; pass nil to accept any connection (local/dev use only).
func NewServer(addr string, auth Authenticator) *Server {
	hub := NewHub()
	handler := NewHandler(hub, auth)

	router := mux.NewRouter()
	router.Handle("/ws", handler)
	router.HandleFunc("/broadcast", handler.HandleBroadcast)

	return &Server{
		hub:     hub,
		handler: handler,
		httpSrv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Hub exposes the underlying Hub so callers can pass it to the engine as a
// metrics.Sink.
func (s *Server) Hub() *Hub { return s.hub }

// Run starts the hub loop and the HTTP listener, blocking until ctx is
// cancelled. Returns any non-shutdown ListenAndServe error.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
