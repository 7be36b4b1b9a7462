package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/view"
)

// Handler wires account-management endpoints. The router mounts these behind
// the admin-only guard; the service re-checks the capability regardless.
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

// MountRoutes registers user admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.newForm)
	r.Post("/", h.create)
	r.Post("/{id}/role", h.changeRole)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Post("/{id}/activate", h.activate)
}

type userForm struct {
	Name     string `validate:"required,min=2,max=120"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=10"`
	Role     string `validate:"required"`
}

type usersPageData struct {
	Users  []User
	Roles  []authz.Role
	Errors map[string]string
}

type userFormPageData struct {
	Form   userForm
	Roles  []authz.Role
	Errors map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	accounts, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	h.render(w, r, "pages/admin_users.html", "Users", usersPageData{
		Users: accounts,
		Roles: authz.Roles(),
	})
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin_user_form.html", "New user", userFormPageData{
		Roles: authz.Roles(),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := userForm{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
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
	if !authz.Known(authz.Role(form.Role)) {
		fieldErrors["Role"] = "Unknown role"
	}

	if len(fieldErrors) == 0 {
		_, err := h.service.Create(r.Context(), actor, NewUser{
			Email:    form.Email,
			Name:     form.Name,
			Password: form.Password,
			Role:     authz.Role(form.Role),
		})
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			fieldErrors["Email"] = "An account with this email already exists"
		case err != nil:
			h.fail(w, r, "create user", err)
			return
		default:
			h.flash(r, "success", "User created")
			http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
			return
		}
	}

	form.Password = ""
	h.render(w, r, "pages/admin_user_form.html", "New user", userFormPageData{
		Form:   form,
		Roles:  authz.Roles(),
		Errors: fieldErrors,
	})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.ChangeRole(r.Context(), actor, id, authz.Role(r.PostFormValue("role")))
	if errors.Is(err, ErrSelfChange) {
		h.flash(r, "error", "You cannot change your own role")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.fail(w, r, "change role", err)
		return
	}

	h.flash(r, "success", "Role updated")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := h.service.Deactivate(r.Context(), actor, id)
	if errors.Is(err, ErrSelfChange) {
		h.flash(r, "error", "You cannot deactivate your own account")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.fail(w, r, "deactivate user", err)
		return
	}

	h.flash(r, "success", "User deactivated and signed out")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	actor := guard.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.Activate(r.Context(), actor, id); err != nil {
		h.fail(w, r, "activate user", err)
		return
	}

	h.flash(r, "success", "User activated")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
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
		h.logger.Error("render users page", slog.String("page", page), slog.Any("error", err))
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
