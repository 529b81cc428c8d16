// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package storysync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Session state keys in the session store.
const (
	sessionKeyToken  = "token"
	sessionKeyUserID = "userId"
	sessionKeyName   = "name"
)

// SessionStore persists the scalar session fields across restarts.
type SessionStore interface {
	SessionValue(ctx context.Context, key string) (string, error) // "" when absent
	SetSessionValue(ctx context.Context, key, value string) error
	DeleteSessionValue(ctx context.Context, key string) error
}

// Session holds the authenticated user context shared by the engine and the
// gateway. Lifecycle is explicit: initialized on login, cleared on logout.
type Session struct {
	store  SessionStore
	logger *slog.Logger

	mu     sync.RWMutex
	token  string
	userID string
	name   string
}

// NewSession creates a session backed by the given store. Previously
// persisted credentials are loaded lazily via Restore.
func NewSession(store SessionStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger}
}

// Restore loads persisted session state. A missing session is not an error.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.SessionValue(ctx, sessionKeyToken)
	if err != nil {
		return fmt.Errorf("failed to restore session token: %w", err)
	}
	userID, err := s.store.SessionValue(ctx, sessionKeyUserID)
	if err != nil {
		return fmt.Errorf("failed to restore session user id: %w", err)
	}
	name, err := s.store.SessionValue(ctx, sessionKeyName)
	if err != nil {
		return fmt.Errorf("failed to restore session name: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.name = name
	s.mu.Unlock()
	return nil
}

// SignIn stores the credentials returned by a successful login. When the
// login result omits user id or name, they are recovered from the token's
// public claims. The token is issued and verified by the server; the client
// only reads claims, so no signature check happens here.
func (s *Session) SignIn(ctx context.Context, token, userID, name string) error {
	if userID == "" || name == "" {
		claimUser, claimName := claimsFromToken(token)
		if userID == "" {
			userID = claimUser
		}
		if name == "" {
			name = claimName
		}
	}

	if err := s.store.SetSessionValue(ctx, sessionKeyToken, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	if err := s.store.SetSessionValue(ctx, sessionKeyUserID, userID); err != nil {
		return fmt.Errorf("failed to persist session user id: %w", err)
	}
	if err := s.store.SetSessionValue(ctx, sessionKeyName, name); err != nil {
		return fmt.Errorf("failed to persist session name: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.name = name
	s.mu.Unlock()

	s.logger.Info("Session established", "user_id", userID, "name", name)
	return nil
}

// SignOut clears the session state in memory and in the store.
func (s *Session) SignOut(ctx context.Context) error {
	for _, key := range []string{sessionKeyToken, sessionKeyUserID, sessionKeyName} {
		if err := s.store.DeleteSessionValue(ctx, key); err != nil {
			return fmt.Errorf("failed to clear session %s: %w", key, err)
		}
	}

	s.mu.Lock()
	s.token = ""
	s.userID = ""
	s.name = ""
	s.mu.Unlock()

	s.logger.Info("Session cleared")
	return nil
}

// Token returns the current bearer token, or "" when signed out. Matches the
// token provider signature expected by the gateway.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// UserID returns the signed-in user's id, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Name returns the signed-in user's display name, or "".
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// IsSignedIn reports whether a bearer token is present.
func (s *Session) IsSignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// claimsFromToken extracts user id and name from a JWT without verifying the
// signature (the client does not hold the server secret).
func claimsFromToken(token string) (userID, name string) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", ""
	}
	if sub, err := claims.GetSubject(); err == nil {
		userID = sub
	}
	if v, ok := claims["userId"].(string); ok && v != "" {
		userID = v
	}
	if v, ok := claims["name"].(string); ok {
		name = v
	}
	return userID, name
}
