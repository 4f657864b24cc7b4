package http

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageHandler renders the HTML surface. Every form page embeds the CSRF
// token provisioned by the guard earlier in the chain as a hidden field.
type PageHandler struct {
	Csrf *httpx.CsrfGuard
}

type pageData struct {
	Title     string
	CsrfToken string
	CsrfField string
	Error     string
	UserID    string
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	data.CsrfToken = httpx.CsrfToken(r.Context())
	data.CsrfField = h.Csrf.FieldName

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		slogx.FromContext(r.Context()).Error("template render failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", pageData{
		Title: "Sign in",
		Error: r.URL.Query().Get("error"),
	})
}

func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", pageData{Title: "Create account"})
}

func (h *PageHandler) RegisterSuccess(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "success.html", pageData{Title: "Account created"})
}

func (h *PageHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "forgot_password.html", pageData{Title: "Reset password"})
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	h.render(w, r, "dashboard.html", pageData{
		Title:  "Dashboard",
		UserID: claims.Subject,
	})
}
