package authweb

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/clearline-consulting/clearline/internal/identity"
	"github.com/clearline-consulting/clearline/internal/observability"
	"github.com/clearline-consulting/clearline/internal/session"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Handler wires the login and logout endpoints. A successful login binds the
// provider session token to the browser session; logout severs both sides.
type Handler struct {
	logger    *slog.Logger
	registry  *session.Registry
	templates *view.Engine
	sessions  *shared.Manager
	csrf      *shared.CSRFManager
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, registry *session.Registry, templates *view.Engine, sessions *shared.Manager, csrf *shared.CSRFManager, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		registry:  registry,
		templates: templates,
		sessions:  sessions,
		csrf:      csrf,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login attempts
// carry a per-IP limit on top of the global one.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, loginPageData{Next: safeNext(r.URL.Query().Get("next"))})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"))

	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fieldErrors[fieldErr.Field()] = "This field is " + fieldErr.Tag()
			}
		}
	}
	if len(fieldErrors) > 0 {
		h.render(w, r, loginPageData{Form: loginForm{Email: form.Email}, Next: next, Errors: fieldErrors})
		return
	}

	token, snap, err := h.registry.Login(r.Context(), form.Email, form.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		h.metrics.ObserveLogin("rejected")
		h.render(w, r, loginPageData{
			Form:   loginForm{Email: form.Email},
			Next:   next,
			Errors: map[string]string{"general": "Invalid email or password"},
		})
		return
	}
	if err != nil {
		h.metrics.ObserveLogin("error")
		h.logger.Error("login", slog.Any("error", err))
		h.render(w, r, loginPageData{
			Form:   loginForm{Email: form.Email},
			Next:   next,
			Errors: map[string]string{"general": "Sign-in is unavailable right now. Please try again."},
		})
		return
	}

	h.metrics.ObserveLogin("success")
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetIdentityToken(token)
	name := form.Email
	if snap.Actor != nil && snap.Actor.Name != "" {
		name = snap.Actor.Name
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + name})

	if next == "" {
		next = "/admin"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if token := sess.IdentityToken(); token != "" {
			if err := h.registry.Logout(r.Context(), token); err != nil {
				// Local state is already cleared; the provider session dies
				// on expiry at the latest.
				h.logger.Warn("provider sign-out", slog.Any("error", err))
			}
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	var flash *shared.FlashMessage
	if sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// safeNext accepts only local paths as post-login destinations, so the login
// form cannot be used as an open redirect.
func safeNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return ""
	}
	return u.RequestURI()
}
