package insights

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Handler wires backoffice HTTP endpoints for insights. All routes assume the
// navigation guard already ran; the service re-checks capabilities anyway.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers insight admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.newForm)
	r.Post("/", h.create)
	r.Get("/{id}/edit", h.editForm)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.delete)
}

type insightForm struct {
	Title     string `validate:"required,min=3,max=160"`
	Summary   string `validate:"required,max=500"`
	Body      string `validate:"required"`
	Published bool
}

type listPageData struct {
	Insights []Insight
}

type formPageData struct {
	Insight Insight
	Action  string
	Errors  map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	items, err := h.service.ListAll(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "list insights", err)
		return
	}
	h.render(w, r, "pages/admin_insights.html", "Insights", listPageData{Insights: items})
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin_insight_form.html", "New insight", formPageData{
		Action: "/admin/insights",
	})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")
	ins, err := h.service.ByID(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get insight", err)
		return
	}
	h.render(w, r, "pages/admin_insight_form.html", "Edit insight", formPageData{
		Insight: ins,
		Action:  "/admin/insights/" + ins.ID,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	form, fieldErrors := h.parseForm(r)
	if len(fieldErrors) > 0 {
		h.render(w, r, "pages/admin_insight_form.html", "New insight", formPageData{
			Insight: draftInsight(form),
			Action:  "/admin/insights",
			Errors:  fieldErrors,
		})
		return
	}

	_, err := h.service.Create(r.Context(), actor, Draft{
		Title:     form.Title,
		Summary:   form.Summary,
		Body:      form.Body,
		Published: form.Published,
	})
	if errors.Is(err, ErrDuplicateSlug) {
		h.render(w, r, "pages/admin_insight_form.html", "New insight", formPageData{
			Insight: draftInsight(form),
			Action:  "/admin/insights",
			Errors:  map[string]string{"Title": "An insight with this title already exists"},
		})
		return
	}
	if err != nil {
		h.fail(w, r, "create insight", err)
		return
	}

	h.flash(r, "success", "Insight created")
	http.Redirect(w, r, "/admin/insights", http.StatusSeeOther)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")
	form, fieldErrors := h.parseForm(r)
	if len(fieldErrors) > 0 {
		ins := draftInsight(form)
		ins.ID = id
		h.render(w, r, "pages/admin_insight_form.html", "Edit insight", formPageData{
			Insight: ins,
			Action:  "/admin/insights/" + id,
			Errors:  fieldErrors,
		})
		return
	}

	_, err := h.service.Update(r.Context(), actor, id, Draft{
		Title:     form.Title,
		Summary:   form.Summary,
		Body:      form.Body,
		Published: form.Published,
	})
	if errors.Is(err, ErrDuplicateSlug) {
		ins := draftInsight(form)
		ins.ID = id
		h.render(w, r, "pages/admin_insight_form.html", "Edit insight", formPageData{
			Insight: ins,
			Action:  "/admin/insights/" + id,
			Errors:  map[string]string{"Title": "An insight with this title already exists"},
		})
		return
	}
	if err != nil {
		h.fail(w, r, "update insight", err)
		return
	}

	h.flash(r, "success", "Insight updated")
	http.Redirect(w, r, "/admin/insights", http.StatusSeeOther)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, "delete insight", err)
		return
	}
	h.flash(r, "success", "Insight deleted")
	http.Redirect(w, r, "/admin/insights", http.StatusSeeOther)
}

func (h *Handler) parseForm(r *http.Request) (insightForm, map[string]string) {
	if err := r.ParseForm(); err != nil {
		return insightForm{}, map[string]string{"general": "Invalid form submission"}
	}
	form := insightForm{
		Title:     r.PostFormValue("title"),
		Summary:   r.PostFormValue("summary"),
		Body:      r.PostFormValue("body"),
		Published: r.PostFormValue("published") == "on",
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fieldErrors[fieldErr.Field()] = "This field is " + fieldErr.Tag()
			}
		}
	}
	if len(fieldErrors) == 0 {
		return form, nil
	}
	return form, fieldErrors
}

func draftInsight(form insightForm) Insight {
	return Insight{
		Title:     form.Title,
		Summary:   form.Summary,
		Body:      form.Body,
		Published: form.Published,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	var flash *shared.FlashMessage
	if sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(sess)
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Actor:       guard.ActorFromContext(r.Context()),
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render insights page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, shared.ErrNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
