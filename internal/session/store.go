// Package session owns the authenticated-actor state for one browser
// session. The Store is the only writer of that state; guards, templates and
// handlers read it through snapshots so every consumer sees the same answer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/identity"
)

// State is the tri-state resolution status of a session.
type State int

const (
	// StateUnknown means resolution has not completed yet. Consumers must
	// treat it as neither authenticated nor unauthenticated and wait.
	StateUnknown State = iota
	// StateAuthenticated means a valid provider session resolved to an actor.
	StateAuthenticated
	// StateUnauthenticated means no valid session exists.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time read of the session state.
type Snapshot struct {
	State State
	Actor *authz.Actor
	// Fallback is set when the profile lookup failed and the actor carries
	// only the minimal provider identity with the default role.
	Fallback bool
}

// IsAuthenticated reports whether the snapshot holds a resolved actor.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Actor != nil
}

// fallbackRole is assigned when the profile store cannot be consulted. Least
// privilege: a transient profile hiccup must not lock a valid session out,
// but it must not grant more than read access either.
const fallbackRole = authz.RoleObserver

// Store resolves, caches and invalidates the actor for one provider session
// token. Resolutions are ordered by a monotonic version: a completion that
// lands after a newer state change is discarded, so a logout always beats a
// stale in-flight check.
type Store struct {
	provider identity.Provider
	profiles identity.ProfileStore
	logger   *slog.Logger

	mu       sync.Mutex
	token    string
	state    State
	actor    *authz.Actor
	fallback bool
	issued   uint64
	applied  uint64

	resolveOnce sync.Once
	resolved    chan struct{}
}

// NewStore constructs a Store bound to a provider session token. The token
// may be empty when the store is created ahead of a Login call.
func NewStore(provider identity.Provider, profiles identity.ProfileStore, token string, logger *slog.Logger) *Store {
	return &Store{
		provider: provider,
		profiles: profiles,
		logger:   logger,
		token:    token,
		state:    StateUnknown,
		resolved: make(chan struct{}),
	}
}

// Token returns the provider session token the store tracks.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// CheckSession asks the provider for the current session and resolves the
// actor. Absence of a session resolves silently to unauthenticated; any
// indeterminate provider failure fails closed the same way, logged for
// operability.
func (s *Store) CheckSession(ctx context.Context) error {
	v := s.begin()
	sess, err := s.provider.CurrentSession(ctx, s.Token())
	if err != nil {
		if !errors.Is(err, identity.ErrNoSession) && s.logger != nil {
			s.logger.Warn("session check failed, failing closed", slog.Any("error", err))
		}
		s.commit(v, StateUnauthenticated, nil, false)
		if errors.Is(err, identity.ErrNoSession) {
			return nil
		}
		return err
	}
	actor, fb := s.resolveActor(ctx, sess)
	s.commit(v, StateAuthenticated, &actor, fb)
	return nil
}

// Login delegates credential verification to the provider. On failure the
// state is left untouched and the typed error surfaces to the caller; on
// success the same profile-resolution path as CheckSession runs.
func (s *Store) Login(ctx context.Context, email, password string) error {
	v := s.begin()
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = sess.Token
	s.mu.Unlock()

	actor, fb := s.resolveActor(ctx, sess)
	s.commit(v, StateAuthenticated, &actor, fb)
	return nil
}

// Logout requests provider-side invalidation, then unconditionally clears the
// local state. Stale local "authenticated" state is worse than an extra no-op
// provider call, so the clear happens even when the provider call fails.
// Calling Logout on an already signed-out store is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	v := s.begin()
	if err := s.provider.SignOut(ctx, s.Token()); err != nil && s.logger != nil {
		s.logger.Warn("provider sign-out failed, clearing local state anyway", slog.Any("error", err))
	}
	s.commit(v, StateUnauthenticated, nil, false)
	return nil
}

// Apply routes a provider event through the same resolution paths used by
// CheckSession and Logout. There is deliberately no second code path here.
func (s *Store) Apply(ctx context.Context, ev identity.Event) error {
	switch ev.Kind {
	case identity.EventSignedOut:
		v := s.begin()
		s.commit(v, StateUnauthenticated, nil, false)
		return nil
	case identity.EventSignedIn:
		return s.CheckSession(ctx)
	default:
		return nil
	}
}

// Snapshot returns the current state. The actor is copied so callers cannot
// mutate the store's view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Fallback: s.fallback}
	if s.actor != nil {
		actor := *s.actor
		snap.Actor = &actor
	}
	return snap
}

// Wait blocks until the state leaves StateUnknown or the context expires,
// then returns a snapshot. The boolean reports whether resolution completed;
// when it is false the snapshot still carries StateUnknown and callers must
// fail closed. An expired wait does not cancel the in-flight resolution,
// whose result is applied when it completes, subject to version ordering.
func (s *Store) Wait(ctx context.Context) (Snapshot, bool) {
	select {
	case <-s.resolved:
		return s.Snapshot(), true
	case <-ctx.Done():
		return s.Snapshot(), false
	}
}

// begin hands out the next resolution version.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// commit applies a resolution unless a newer one already landed.
func (s *Store) commit(v uint64, state State, actor *authz.Actor, fallback bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v <= s.applied {
		if s.logger != nil {
			s.logger.Debug("discarding stale session resolution",
				slog.Uint64("version", v), slog.Uint64("applied", s.applied))
		}
		return false
	}
	s.applied = v
	s.state = state
	s.actor = actor
	s.fallback = fallback
	s.resolveOnce.Do(func() { close(s.resolved) })
	return true
}

// resolveActor loads the actor profile for a provider session. Any lookup
// failure falls back to the minimal provider identity with the default role
// rather than failing the whole resolution: a transient profile-store hiccup
// must not lock a valid session out.
func (s *Store) resolveActor(ctx context.Context, sess identity.Session) (authz.Actor, bool) {
	actor, err := s.profiles.ActorProfile(ctx, sess.IdentityID)
	if err == nil {
		return actor, false
	}
	if s.logger != nil {
		s.logger.Warn("profile lookup failed, using minimal identity",
			slog.String("identity_id", sess.IdentityID), slog.Any("error", err))
	}
	return authz.Actor{
		ID:     sess.IdentityID,
		Email:  sess.Email,
		Role:   fallbackRole,
		Active: true,
	}, true
}
