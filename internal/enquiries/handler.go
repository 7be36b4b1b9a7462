package enquiries

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Handler serves the backoffice enquiry listing. The public contact form that
// feeds it lives in the site package.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers enquiry admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type listPageData struct {
	Enquiries []Enquiry
	Errors    map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	items, err := h.service.List(r.Context(), actor, 200)
	if err != nil {
		if errors.Is(err, shared.ErrForbidden) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.logger.Error("list enquiries", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	var flash *shared.FlashMessage
	if sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Enquiries",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Actor:       actor,
		Data:        listPageData{Enquiries: items},
	}
	if err := h.templates.Render(w, "pages/admin_enquiries.html", viewData); err != nil {
		h.logger.Error("render enquiries", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
