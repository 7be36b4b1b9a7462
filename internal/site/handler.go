package site

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clearline-consulting/clearline/internal/enquiries"
	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/insights"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Handler serves the public marketing pages.
type Handler struct {
	logger    *slog.Logger
	insights  *insights.Service
	enquiries *enquiries.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, ins *insights.Service, enq *enquiries.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		insights:  ins,
		enquiries: enq,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers the public routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/services", h.services)
	r.Get("/team", h.team)
	r.Get("/insights", h.insightList)
	r.Get("/insights/{slug}", h.insightDetail)
	r.Get("/contact", h.contactForm)
	r.Post("/contact", h.contactSubmit)
}

// Member is a team profile shown on the team page.
type Member struct {
	Name  string
	Title string
	Bio   string
}

// members is editorial content, not data. It changes with the roster.
var members = []Member{
	{Name: "Ana Wirjawan", Title: "Managing Partner", Bio: "Two decades of strategy work across Southeast Asia. Previously led a regional practice at a global firm."},
	{Name: "Tom Velder", Title: "Partner, Operations", Bio: "Ran manufacturing and supply chain before switching sides. Still visits the shop floor on day one."},
	{Name: "Sari Kusuma", Title: "Partner, Technology", Bio: "Former CTO. Reviews architectures with the people who will run them at three in the morning."},
}

type homePageData struct {
	Greeting string
	Featured []insights.Insight
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	locale := NegotiateLocale(r)
	featured, err := h.insights.ListPublished(r.Context(), 3)
	if err != nil {
		h.logger.Warn("list featured insights", slog.Any("error", err))
	}
	h.render(w, r, "pages/home.html", "Clearline Consulting", locale, homePageData{
		Greeting: Greeting(locale),
		Featured: featured,
	})
}

func (h *Handler) services(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/services.html", "Services", NegotiateLocale(r), nil)
}

type teamPageData struct {
	Members []Member
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/team.html", "Team", NegotiateLocale(r), teamPageData{Members: members})
}

type insightListPageData struct {
	Insights []insights.Insight
}

func (h *Handler) insightList(w http.ResponseWriter, r *http.Request) {
	items, err := h.insights.ListPublished(r.Context(), 50)
	if err != nil {
		h.logger.Error("list insights", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/insights.html", "Insights", NegotiateLocale(r), insightListPageData{Insights: items})
}

type insightPageData struct {
	Insight insights.Insight
}

func (h *Handler) insightDetail(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	ins, err := h.insights.BySlug(r.Context(), slug)
	if errors.Is(err, shared.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("get insight", slog.String("slug", slug), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/insight.html", ins.Title, NegotiateLocale(r), insightPageData{Insight: ins})
}

type contactForm struct {
	Name    string `validate:"required,min=2,max=120"`
	Email   string `validate:"required,email"`
	Message string `validate:"required,min=10,max=4000"`
}

type contactPageData struct {
	Form   contactForm
	Errors map[string]string
}

func (h *Handler) contactForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/contact.html", "Contact", NegotiateLocale(r), contactPageData{})
}

func (h *Handler) contactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := contactForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
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
	if len(fieldErrors) > 0 {
		h.render(w, r, "pages/contact.html", "Contact", NegotiateLocale(r), contactPageData{
			Form:   form,
			Errors: fieldErrors,
		})
		return
	}

	if _, err := h.enquiries.Submit(r.Context(), form.Name, form.Email, form.Message); err != nil {
		h.logger.Error("submit enquiry", slog.Any("error", err))
		h.render(w, r, "pages/contact.html", "Contact", NegotiateLocale(r), contactPageData{
			Form:   form,
			Errors: map[string]string{"general": "Something went wrong. Please try again."},
		})
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Thanks, we will be in touch."})
	}
	http.Redirect(w, r, "/contact", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title, locale string, data any) {
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
		Locale:      locale,
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render site page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
