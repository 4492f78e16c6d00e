// Package handler contains the HTTP request handlers.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/Atharva-script/mlp/internal/session"
)

// PageHandler renders the HTML pages. Templates are parsed once at startup
// and reused on every request.
//
// Rendering is a boundary concern here — the pages exist so the auth flow
// has somewhere to land, nothing more.
type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewPageHandler parses every template under templateDir.
func NewPageHandler(templateDir string, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseGlob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// HandleLoginPage serves the anonymous entry point. GET /
func (h *PageHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", nil)
}

// HandleContact serves the contact page. GET /contact
func (h *PageHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	h.render(w, "contact.html", nil)
}

// HandleRegisterPage serves the registration form. GET /register
func (h *PageHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register.html", nil)
}

// HandleIndex serves the signed-in landing page. GET /index, behind
// EnsureAuthenticated, so the session is always in the context here.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{}
	if s, ok := session.FromContext(r.Context()); ok && s.User != nil {
		data["User"] = s.User
	}
	h.render(w, "index.html", data)
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("rendering template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
