package control

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/fluxline/pulsecore/internal/engine"
	"github.com/fluxline/pulsecore/internal/metrics"
)

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries an issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// StatusResponse summarizes the controlled engine's run state.
type StatusResponse struct {
	Running bool             `json:"running"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// Controller exposes start/stop/status control over one Engine and issues
// access tokens for itself and the dashboard websocket.
type Controller struct {
	eng   *engine.Engine
	out   engine.OutSink
	users UserStore
	jwt   *JWTManager

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewController wires a Controller around eng, forwarding engine messages
// to out whenever it is running.
func NewController(eng *engine.Engine, out engine.OutSink, users UserStore, jwt *JWTManager) *Controller {
	return &Controller{eng: eng, out: out, users: users, jwt: jwt}
}

// Router builds the mux.Router serving the control API.
func (c *Controller) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/control/login", c.handleLogin).Methods(http.MethodPost)
	r.Handle("/control/start", c.requireAuth(http.HandlerFunc(c.handleStart))).Methods(http.MethodPost)
	r.Handle("/control/stop", c.requireAuth(http.HandlerFunc(c.handleStop))).Methods(http.MethodPost)
	r.Handle("/control/status", c.requireAuth(http.HandlerFunc(c.handleStatus))).Methods(http.MethodGet)
	return r
}

func (c *Controller) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := c.jwt.Validate(token); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := c.users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := c.jwt.Issue(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{AccessToken: token, ExpiresAt: expiresAt, Role: user.Role})
}

func (c *Controller) handleStart(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		respondJSON(w, http.StatusOK, StatusResponse{Running: true, Metrics: c.eng.Collector().Snapshot()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	go func() {
		c.eng.Run(ctx, c.out)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	respondJSON(w, http.StatusOK, StatusResponse{Running: true, Metrics: c.eng.Collector().Snapshot()})
}

func (c *Controller) handleStop(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.cancel == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Running: false, Metrics: c.eng.Collector().Snapshot()})
		return
	}
	c.cancel()
	c.running = false

	respondJSON(w, http.StatusOK, StatusResponse{Running: false, Metrics: c.eng.Collector().Snapshot()})
}

// Shutdown stops any in-flight engine run started through the control API.
// Safe to call whether or not the engine is currently running; intended to
// be called once as part of the host process's own graceful shutdown, since
// a run started via /control/start is otherwise independent of the
// process's shutdown signal.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.cancel != nil {
		c.cancel()
		c.running = false
	}
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	respondJSON(w, http.StatusOK, StatusResponse{Running: running, Metrics: c.eng.Collector().Snapshot()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
