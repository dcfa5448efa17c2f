package dashboard

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator validates a viewer-supplied token before a connection is
// upgraded. control.TokenAuthenticator is the production implementation;
// tests and standalone runs can use AllowAllAuthenticator.
type Authenticator interface {
	Validate(token string) bool
}

// AllowAllAuthenticator accepts any token, including an empty one. It
// exists for local runs with no control API configured and must never be
// wired into a deployment that exposes the dashboard publicly.
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) Validate(string) bool { return true }

// Handler upgrades HTTP requests to dashboard websocket connections.
type Handler struct {
	hub  *Hub
	auth Authenticator
}

// NewHandler builds a Handler backed by hub, gating connections with auth.
func NewHandler(hub *Hub, auth Authenticator) *Handler {
	if auth == nil {
		auth = AllowAllAuthenticator{}
	}
	return &Handler{hub: hub, auth: auth}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !h.auth.Validate(token) {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.register <- client
	client.Run()

	log.Printf("dashboard: client %s connected", client.id)
}

// HandleBroadcast lets an internal caller push an arbitrary payload onto a
// channel without going through the engine's Sink path, useful for manual
// operator announcements.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Channel string         `json:"channel"`
		Data    map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	h.hub.enqueue(&Message{Type: "update", Channel: body.Channel, Data: body.Data})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
