package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/session"
	"github.com/clearline-consulting/clearline/internal/shared"
)

// stubResolver returns a fixed snapshot, optionally after a delay longer
// than the guard's bound.
type stubResolver struct {
	snap  session.Snapshot
	delay time.Duration
}

func (s stubResolver) Resolve(ctx context.Context, token string) session.Snapshot {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return session.Snapshot{State: session.StateUnknown}
		}
	}
	return s.snap
}

func newGuard(resolver SessionResolver, timeout time.Duration) *Guard {
	return New(Config{Resolver: resolver, ResolveTimeout: timeout})
}

func protectedRequest(t *testing.T, g *Guard, path string, required ...authz.Role) *httptest.ResponseRecorder {
	t.Helper()
	var sawActor *authz.Actor
	handler := g.Protect(required...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawActor = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("protected content"))
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code == http.StatusOK {
		require.NotNil(t, sawActor, "handler must see the resolved actor")
	}
	return res
}

func authedSnapshot(role authz.Role) session.Snapshot {
	return session.Snapshot{
		State: session.StateAuthenticated,
		Actor: &authz.Actor{ID: "id-1", Role: role, Active: true},
	}
}

func TestAuthenticatedAuthorizedRenders(t *testing.T) {
	g := newGuard(stubResolver{snap: authedSnapshot(authz.RoleAdmin)}, time.Second)
	res := protectedRequest(t, g, "/admin/users", authz.RoleAdmin)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "protected content")
}

func TestNoRequiredRolesAdmitsAnyAuthenticated(t *testing.T) {
	g := newGuard(stubResolver{snap: authedSnapshot(authz.RoleObserver)}, time.Second)
	res := protectedRequest(t, g, "/admin")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestUnauthenticatedRedirectsPreservingDestination(t *testing.T) {
	g := newGuard(stubResolver{snap: session.Snapshot{State: session.StateUnauthenticated}}, time.Second)
	res := protectedRequest(t, g, "/admin/insights?page=2")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Finsights%3Fpage%3D2", res.Header().Get("Location"))
}

func TestResolutionTimeoutFailsClosedToRedirect(t *testing.T) {
	g := newGuard(stubResolver{snap: authedSnapshot(authz.RoleAdmin), delay: time.Second}, 20*time.Millisecond)
	res := protectedRequest(t, g, "/admin/users", authz.RoleAdmin)
	// Not the loading state, not the protected content.
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Contains(t, res.Header().Get("Location"), "/login?next=")
	assert.NotContains(t, res.Body.String(), "protected content")
}

func TestWrongRoleGetsDeniedViewListingRoles(t *testing.T) {
	g := newGuard(stubResolver{snap: authedSnapshot(authz.RoleObserver)}, time.Second)
	res := protectedRequest(t, g, "/admin/users", authz.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, res.Header().Get("Location"), "denied must render, not redirect")
	assert.Contains(t, res.Body.String(), authz.Label(authz.RoleObserver))
	assert.Contains(t, res.Body.String(), authz.Label(authz.RoleAdmin))
}

func TestInactiveActorIsDenied(t *testing.T) {
	snap := authedSnapshot(authz.RoleAdmin)
	snap.Actor.Active = false
	g := newGuard(stubResolver{snap: snap}, time.Second)
	res := protectedRequest(t, g, "/admin/users", authz.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestGuardReadsTokenFromBrowserSession(t *testing.T) {
	var gotToken string
	resolver := resolverFunc(func(ctx context.Context, token string) session.Snapshot {
		gotToken = token
		return session.Snapshot{State: session.StateUnauthenticated}
	})
	g := newGuard(resolver, time.Second)

	handler := g.Protect()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	sess := &shared.Session{ID: "browser-1"}
	sess.SetIdentityToken("tok-9")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "tok-9", gotToken)
}

type resolverFunc func(ctx context.Context, token string) session.Snapshot

func (f resolverFunc) Resolve(ctx context.Context, token string) session.Snapshot {
	return f(ctx, token)
}
