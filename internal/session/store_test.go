package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/identity"
)

type fakeProvider struct {
	mu         sync.Mutex
	sessions   map[string]identity.Session
	events     chan identity.Event
	signOutErr error
	currentErr error
	// currentGate, when set, blocks CurrentSession until closed.
	currentGate chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions: make(map[string]identity.Session),
		events:   make(chan identity.Event, 8),
	}
}

func (p *fakeProvider) addSession(token, identityID, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[token] = identity.Session{
		Token:      token,
		IdentityID: identityID,
		Email:      email,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	if password != "correct-horse" {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	sess := identity.Session{Token: "issued-token", IdentityID: "id-1", Email: email, ExpiresAt: time.Now().Add(time.Hour)}
	p.mu.Lock()
	p.sessions[sess.Token] = sess
	p.mu.Unlock()
	return sess, nil
}

func (p *fakeProvider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signOutErr != nil {
		return p.signOutErr
	}
	delete(p.sessions, token)
	return nil
}

func (p *fakeProvider) CurrentSession(ctx context.Context, token string) (identity.Session, error) {
	p.mu.Lock()
	gate := p.currentGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return identity.Session{}, p.currentErr
	}
	sess, ok := p.sessions[token]
	if !ok {
		return identity.Session{}, identity.ErrNoSession
	}
	return sess, nil
}

func (p *fakeProvider) Events() <-chan identity.Event { return p.events }

type fakeProfiles struct {
	mu     sync.Mutex
	actors map[string]authz.Actor
	err    error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{actors: make(map[string]authz.Actor)}
}

func (f *fakeProfiles) ActorProfile(ctx context.Context, identityID string) (authz.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return authz.Actor{}, f.err
	}
	actor, ok := f.actors[identityID]
	if !ok {
		return authz.Actor{}, identity.ErrNotFound
	}
	return actor, nil
}

func seededFixtures() (*fakeProvider, *fakeProfiles) {
	provider := newFakeProvider()
	provider.addSession("tok-1", "id-1", "ana@clearline.example")
	profiles := newFakeProfiles()
	profiles.actors["id-1"] = authz.Actor{
		ID: "id-1", Email: "ana@clearline.example", Name: "Ana",
		Role: authz.RoleConsultant, Active: true,
	}
	return provider, profiles
}

func TestCheckSessionResolvesActor(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)

	require.NoError(t, st.CheckSession(context.Background()))

	snap := st.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.Actor)
	assert.Equal(t, "id-1", snap.Actor.ID)
	assert.Equal(t, authz.RoleConsultant, snap.Actor.Role)
	assert.False(t, snap.Fallback)
}

func TestCheckSessionNoSessionIsSilent(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "missing-token", nil)

	require.NoError(t, st.CheckSession(context.Background()))

	snap := st.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Actor)
}

func TestCheckSessionProviderFailureFailsClosed(t *testing.T) {
	provider, profiles := seededFixtures()
	provider.currentErr = errors.New("provider down")
	st := NewStore(provider, profiles, "tok-1", nil)

	err := st.CheckSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, st.Snapshot().State)
}

func TestCheckSessionProfileLookupFallsBack(t *testing.T) {
	provider, profiles := seededFixtures()
	profiles.err = errors.New("profile store unavailable")
	st := NewStore(provider, profiles, "tok-1", nil)

	require.NoError(t, st.CheckSession(context.Background()))

	snap := st.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.Actor)
	assert.Equal(t, "id-1", snap.Actor.ID)
	assert.Equal(t, "ana@clearline.example", snap.Actor.Email)
	assert.Equal(t, authz.RoleObserver, snap.Actor.Role)
	assert.True(t, snap.Fallback)
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.CheckSession(context.Background()))
	before := st.Snapshot()

	err := st.Login(context.Background(), "ana@clearline.example", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	after := st.Snapshot()
	assert.Equal(t, before.State, after.State)
	require.NotNil(t, after.Actor)
	assert.Equal(t, before.Actor.ID, after.Actor.ID)
}

func TestLoginSuccessResolvesProfile(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "", nil)

	require.NoError(t, st.Login(context.Background(), "ana@clearline.example", "correct-horse"))

	assert.Equal(t, "issued-token", st.Token())
	snap := st.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, authz.RoleConsultant, snap.Actor.Role)
}

func TestLogoutIsIdempotent(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.CheckSession(context.Background()))

	require.NoError(t, st.Logout(context.Background()))
	assert.Equal(t, StateUnauthenticated, st.Snapshot().State)

	require.NoError(t, st.Logout(context.Background()))
	assert.Equal(t, StateUnauthenticated, st.Snapshot().State)
}

func TestLogoutClearsStateDespiteProviderFailure(t *testing.T) {
	provider, profiles := seededFixtures()
	provider.signOutErr = errors.New("provider unreachable")
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.CheckSession(context.Background()))

	require.NoError(t, st.Logout(context.Background()))
	assert.Equal(t, StateUnauthenticated, st.Snapshot().State)
}

func TestLogoutWinsOverStaleCheckSession(t *testing.T) {
	provider, profiles := seededFixtures()
	// Keep the provider session alive so the stale check resolves to an
	// authenticated result that must be discarded.
	provider.signOutErr = errors.New("sign-out rejected")

	gate := make(chan struct{})
	provider.currentGate = gate
	st := NewStore(provider, profiles, "tok-1", nil)

	checkDone := make(chan error, 1)
	go func() { checkDone <- st.CheckSession(context.Background()) }()

	// Give the check a moment to claim its version before the logout.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, st.Logout(context.Background()))
	assert.Equal(t, StateUnauthenticated, st.Snapshot().State)

	close(gate)
	require.NoError(t, <-checkDone)

	snap := st.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State, "stale check must not overwrite the logout")
	assert.Nil(t, snap.Actor)
}

func TestSignedOutEventRevokesCapabilities(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.CheckSession(context.Background()))
	require.True(t, st.Snapshot().IsAuthenticated())

	require.NoError(t, st.Apply(context.Background(), identity.Event{
		Kind: identity.EventSignedOut, Token: "tok-1", IdentityID: "id-1",
	}))

	snap := st.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Actor)
	// No capability may survive the revocation.
	assert.False(t, authz.CanEditEntity(snap.Actor, ownerOf("id-1")))
	assert.False(t, authz.HasAtLeastRole(snap.Actor, authz.RoleObserver))
}

func TestSignedInEventReresolves(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.Logout(context.Background()))
	provider.addSession("tok-1", "id-1", "ana@clearline.example")

	require.NoError(t, st.Apply(context.Background(), identity.Event{
		Kind: identity.EventSignedIn, Token: "tok-1", IdentityID: "id-1",
	}))

	assert.Equal(t, StateAuthenticated, st.Snapshot().State)
}

func TestWaitTimesOutWhileUnresolved(t *testing.T) {
	provider, profiles := seededFixtures()
	gate := make(chan struct{})
	defer close(gate)
	provider.currentGate = gate
	st := NewStore(provider, profiles, "tok-1", nil)
	go func() { _ = st.CheckSession(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	snap, ok := st.Wait(ctx)
	assert.False(t, ok)
	assert.Equal(t, StateUnknown, snap.State)
}

func TestSnapshotCopiesActor(t *testing.T) {
	provider, profiles := seededFixtures()
	st := NewStore(provider, profiles, "tok-1", nil)
	require.NoError(t, st.CheckSession(context.Background()))

	snap := st.Snapshot()
	snap.Actor.Role = authz.RoleAdmin
	assert.Equal(t, authz.RoleConsultant, st.Snapshot().Actor.Role)
}

type ownerOf string

func (o ownerOf) OwnerID() string { return string(o) }
