// Package control exposes an HTTP API for starting, stopping, and
// inspecting a running engine, gated by JWT bearer auth, adapted from the
// teacher's internal/auth package.
package control

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// User is an operator account permitted to drive the control API.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// UserStore manages operator accounts.
type UserStore interface {
	GetUser(username string) (*User, error)
	CreateUser(username, password, role string) (*User, error)
	ValidateCredentials(username, password string) (*User, error)
}

// InMemoryUserStore is a simple in-memory UserStore for local runs and
// tests. A deployment that needs accounts to survive a restart should
// back this with incidentlog's Postgres connection instead.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryUserStore returns an empty store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*User)}
}

func (s *InMemoryUserStore) GetUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryUserStore) CreateUser(username, password, role string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{ID: generateUserID(), Username: username, PasswordHash: string(hash), Role: role, CreatedAt: time.Now()}
	s.users[username] = u
	return u, nil
}

func (s *InMemoryUserStore) ValidateCredentials(username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func generateUserID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// JWTManager issues and validates access tokens for the control API.
type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
}

// NewJWTManager builds a manager signing with secretKey. An empty
// secretKey generates a random one, which only makes sense for a single
// process's lifetime (tokens won't validate across a restart).
func NewJWTManager(secretKey string, ttl time.Duration) *JWTManager {
	if secretKey == "" {
		b := make([]byte, 32)
		rand.Read(b)
		secretKey = base64.URLEncoding.EncodeToString(b)
	}
	return &JWTManager{secretKey: []byte(secretKey), ttl: ttl}
}

// Issue generates a signed access token for user.
func (m *JWTManager) Issue(user *User) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.ttl)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pulsecore",
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("control: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies an access token.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("control: parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenAuthenticator adapts JWTManager to dashboard.Authenticator so the
// dashboard websocket endpoint can share the control API's login tokens.
type TokenAuthenticator struct {
	manager *JWTManager
}

// NewTokenAuthenticator wraps manager for use as a dashboard.Authenticator.
func NewTokenAuthenticator(manager *JWTManager) *TokenAuthenticator {
	return &TokenAuthenticator{manager: manager}
}

// Validate reports whether token is a currently valid access token.
func (a *TokenAuthenticator) Validate(token string) bool {
	if token == "" {
		return false
	}
	_, err := a.manager.Validate(token)
	return err == nil
}
