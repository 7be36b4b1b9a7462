// Package guard decides whether a protected screen renders for the current
// actor, and what happens when it does not.
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/observability"
	"github.com/clearline-consulting/clearline/internal/session"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Outcomes recorded per guard decision.
const (
	outcomeRender   = "render"
	outcomeRedirect = "redirect"
	outcomeDenied   = "denied"
	outcomeTimeout  = "timeout"
)

// SessionResolver resolves the session state for an identity token within
// the caller's context deadline.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) session.Snapshot
}

// Config collects Guard dependencies.
type Config struct {
	Resolver  SessionResolver
	Templates *view.Engine
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	// ResolveTimeout bounds how long a request waits for session resolution
	// before failing closed. It does not cancel the underlying resolution.
	ResolveTimeout time.Duration
	// LoginPath is the sign-in entry point unauthenticated requests are sent
	// to, with the original destination preserved in the "next" parameter.
	LoginPath string
}

// Guard is the navigation guard middleware factory.
type Guard struct {
	resolver       SessionResolver
	templates      *view.Engine
	logger         *slog.Logger
	metrics        *observability.Metrics
	resolveTimeout time.Duration
	loginPath      string
}

// New constructs a Guard.
func New(cfg Config) *Guard {
	timeout := cfg.ResolveTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Guard{
		resolver:       cfg.Resolver,
		templates:      cfg.Templates,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		resolveTimeout: timeout,
		loginPath:      loginPath,
	}
}

// Protect guards a route subtree. With no required roles any authenticated
// actor passes; otherwise the actor's role must be among the required set.
// Exactly three outcomes exist: render, redirect to sign-in, or the denied
// view.
func (g *Guard) Protect(required ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.resolve(r)

			switch {
			case snap.State == session.StateUnknown:
				// Resolution did not finish within the bound: fail closed.
				if g.logger != nil {
					g.logger.Warn("session resolution timed out, failing closed",
						slog.String("path", r.URL.Path))
				}
				g.metrics.ObserveGuardDecision(outcomeTimeout)
				g.redirectToLogin(w, r)
			case snap.State == session.StateUnauthenticated:
				g.metrics.ObserveGuardDecision(outcomeRedirect)
				g.redirectToLogin(w, r)
			case roleAllowed(snap.Actor, required):
				g.metrics.ObserveGuardDecision(outcomeRender)
				ctx := ContextWithActor(r.Context(), snap.Actor)
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				g.metrics.ObserveGuardDecision(outcomeDenied)
				g.renderDenied(w, r, snap.Actor, required)
			}
		})
	}
}

// resolve waits for the session state within the configured bound. The
// timeout is advisory for this request only; the in-flight resolution keeps
// running and its result is applied when it completes.
func (g *Guard) resolve(r *http.Request) session.Snapshot {
	token := ""
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		token = sess.IdentityToken()
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.resolveTimeout)
	defer cancel()
	snap := g.resolver.Resolve(ctx, token)
	g.metrics.ObserveSessionResolution(snap.State.String())
	return snap
}

func roleAllowed(actor *authz.Actor, required []authz.Role) bool {
	if actor == nil || !actor.Active {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, role := range required {
		if actor.Role == role {
			return true
		}
	}
	return false
}

func (g *Guard) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.RequestURI()
	http.Redirect(w, r, g.loginPath+"?next="+url.QueryEscape(next), http.StatusSeeOther)
}

// DeniedData feeds the access-denied view. It names the actor's own role and
// the roles that would satisfy the guard; nothing about other users.
type DeniedData struct {
	ActorRole     string
	RequiredRoles []string
}

func (g *Guard) renderDenied(w http.ResponseWriter, r *http.Request, actor *authz.Actor, required []authz.Role) {
	data := DeniedData{
		RequiredRoles: authz.Labels(required),
	}
	if actor != nil {
		data.ActorRole = authz.Label(actor.Role)
	}

	w.WriteHeader(http.StatusForbidden)
	if g.templates == nil {
		body := "Access denied. Your role: " + data.ActorRole +
			". Required: " + joinLabels(data.RequiredRoles) + "."
		_, _ = w.Write([]byte(body))
		return
	}
	viewData := view.TemplateData{
		Title:       "Access denied",
		CurrentPath: r.URL.Path,
		Actor:       actor,
		Data:        data,
	}
	if err := g.templates.Render(w, "pages/denied.html", viewData); err != nil && g.logger != nil {
		g.logger.Error("render denied view", slog.Any("error", err))
	}
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in the request context.
func ContextWithActor(ctx context.Context, actor *authz.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the resolved actor, or nil outside a guarded
// route.
func ActorFromContext(ctx context.Context) *authz.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*authz.Actor)
	return actor
}
