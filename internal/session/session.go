// Package session keeps per-browser state between requests: the Spotify
// token, the logged-in user and the pending OAuth state.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID          string            `json:"id"`
	Token       *oauth2.Token     `json:"token,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	IsGuest     bool              `json:"is_guest,omitempty"`
	OAuthState  string            `json:"oauth_state,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Values:    make(map[string]string),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Authenticated reports whether the session may call the catalog, either
// with a Spotify token or as a guest.
func (s *Session) Authenticated() bool {
	return s.IsGuest || (s.Token != nil && s.Token.AccessToken != "")
}

// Touch extends the session lifetime.
func (s *Session) Touch(ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}

// Reset drops everything the user logged in with, keeping the session id.
func (s *Session) Reset() {
	s.Token = nil
	s.UserID = ""
	s.DisplayName = ""
	s.IsGuest = false
	s.OAuthState = ""
	s.Values = make(map[string]string)
}

// Rotate gives the session a new id and returns the old one.
func (s *Session) Rotate() (oldID string) {
	oldID = s.ID
	s.ID = uuid.NewString()
	return oldID
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
}

// Store persists sessions. Get returns ErrNotFound for unknown and expired
// sessions alike.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Prune removes expired sessions and reports how many went.
	Prune(ctx context.Context) (int, error)
}
