// Package identity defines the boundary to the identity provider and profile
// store, plus the built-in Postgres-backed implementations of both.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/clearline-consulting/clearline/internal/authz"
)

var (
	// ErrNoSession signals the expected absence of a provider session. It is
	// a steady state, not a fault, and callers must not log it as an error.
	ErrNoSession = errors.New("identity: no session")
	// ErrInvalidCredentials signals a failed email/password check.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrNotFound signals a missing actor profile.
	ErrNotFound = errors.New("identity: not found")
)

// Session is an authenticated provider session. Email and IdentityID are the
// minimal identity carried even when the profile store is unreachable.
type Session struct {
	Token      string
	IdentityID string
	Email      string
	ExpiresAt  time.Time
}

// EventKind discriminates provider notifications.
type EventKind string

const (
	EventSignedIn  EventKind = "signed-in"
	EventSignedOut EventKind = "signed-out"
)

// Event is an asynchronous provider notification about a session.
type Event struct {
	Kind       EventKind `json:"kind"`
	Token      string    `json:"token"`
	IdentityID string    `json:"identity_id"`
}

// Provider is the external identity collaborator.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	// CurrentSession resolves the session for a token. Returns ErrNoSession
	// when no valid session exists.
	CurrentSession(ctx context.Context, token string) (Session, error)
	// Events emits signed-in/signed-out notifications pushed by the provider.
	Events() <-chan Event
}

// ProfileStore resolves actor profiles by identity id.
type ProfileStore interface {
	ActorProfile(ctx context.Context, identityID string) (authz.Actor, error)
}
