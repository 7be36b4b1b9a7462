package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/web"
)

// Engine renders HTML templates embedded at build time.
type Engine struct {
	templates *template.Template
}

// TemplateData carries values shared across templates. Actor is nil on
// public pages; capability checks in templates go through the same
// evaluator as guards and handlers.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Actor       *authz.Actor
	Locale      string
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"roleLabel": func(r authz.Role) string {
			return authz.Label(r)
		},
		"can": func(actor *authz.Actor, capability string) bool {
			if actor == nil {
				return false
			}
			return authz.HasCapability(actor.Role, authz.Capability(capability))
		},
		"canEdit":   authz.CanEditEntity,
		"canDelete": authz.CanDeleteEntity,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
