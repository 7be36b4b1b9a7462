package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clearline-consulting/clearline/internal/authweb"
	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/enquiries"
	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/insights"
	"github.com/clearline-consulting/clearline/internal/observability"
	"github.com/clearline-consulting/clearline/internal/platform/httpx"
	"github.com/clearline-consulting/clearline/internal/session"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/site"
	"github.com/clearline-consulting/clearline/internal/users"
	"github.com/clearline-consulting/clearline/internal/view"
	"github.com/clearline-consulting/clearline/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.Manager
	CSRFManager    *shared.CSRFManager

	SiteHandler      *site.Handler
	AuthHandler      *authweb.Handler
	InsightsHandler  *insights.Handler
	InsightsService  *insights.Service
	UsersHandler     *users.Handler
	UsersService     *users.Service
	EnquiriesHandler *enquiries.Handler
	EnquiriesService *enquiries.Service

	Guard    *guard.Guard
	Registry *session.Registry
	Metrics  *observability.Metrics

	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// NewRouter constructs the chi.Router with Clearline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		checks := map[string]string{"postgres": "ok", "redis": "ok"}
		healthy := true
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if params.Redis != nil {
			if err := params.Redis.Ping(req.Context()).Err(); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}
		if healthy {
			httpx.Healthy(w, checks)
			return
		}
		httpx.Unhealthy(w, checks)
	})

	params.SiteHandler.MountRoutes(r)
	params.AuthHandler.MountRoutes(r)

	r.Route("/admin", func(r chi.Router) {
		// Any authenticated account reaches the dashboard; templates hide
		// what the role cannot touch and every mutation re-checks anyway.
		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Protect())
			r.Get("/", dashboardHandler(params))
			r.Route("/enquiries", params.EnquiriesHandler.MountRoutes)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Protect(authz.RoleAdmin, authz.RoleConsultant))
			r.Route("/insights", params.InsightsHandler.MountRoutes)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Protect(authz.RoleAdmin))
			r.Route("/users", params.UsersHandler.MountRoutes)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

type dashboardData struct {
	Fallback       bool
	InsightCount   int64
	PublishedCount int64
	UserCount      int64
	EnquiryCount   int64
}

func dashboardHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		data := dashboardData{}

		sess := shared.SessionFromContext(ctx)
		if sess != nil && params.Registry != nil {
			snap := params.Registry.Resolve(ctx, sess.IdentityToken())
			data.Fallback = snap.Fallback
		}

		var err error
		if data.InsightCount, data.PublishedCount, err = params.InsightsService.Counts(ctx); err != nil {
			params.Logger.Warn("dashboard insight counts", slog.Any("error", err))
		}
		if data.UserCount, err = params.UsersService.Count(ctx); err != nil {
			params.Logger.Warn("dashboard user count", slog.Any("error", err))
		}
		if data.EnquiryCount, err = params.EnquiriesService.Count(ctx); err != nil {
			params.Logger.Warn("dashboard enquiry count", slog.Any("error", err))
		}

		csrfToken := ""
		var flash *shared.FlashMessage
		if sess != nil {
			csrfToken, _ = params.CSRFManager.EnsureToken(sess)
			flash = sess.PopFlash()
		}
		viewData := view.TemplateData{
			Title:       "Dashboard",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: req.URL.Path,
			Actor:       guard.ActorFromContext(ctx),
			Data:        data,
		}
		if err := params.Templates.Render(w, "pages/admin_dashboard.html", viewData); err != nil {
			params.Logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers so assets
// are cached for an hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
