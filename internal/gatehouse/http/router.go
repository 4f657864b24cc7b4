package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/internal/gatehouse/store"
	"github.com/mveljko/gatehouse/pkg/httpx"
	"github.com/mveljko/gatehouse/pkg/kvx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Link

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	kv    kvx.Store

	TokenService *service.TokenService
	UserService  *service.UserService
	RateLimiter  *service.RateLimiter
	Csrf         *httpx.CsrfGuard
}

func NewRouter(
	buildVersion string,
	debugMode bool,
	st store.Store,
	kv kvx.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		kv:           kv,
		logger:       logger,
		Csrf:         httpx.NewCsrfGuard(),
	}

	// Global chain. Request-ID bookkeeping runs outside the recovery
	// boundary so even a panic response carries a correlation ID; the
	// boundary itself wraps everything else.
	r.middlewares = []httpx.Link{
		httpx.Wrap(slogx.HTTPMiddleware(r.logger)),
		httpx.Recover(debugMode),
	}

	return r
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerPages()
	r.registerAuth()
	r.registerStatic()
	r.registerSystem()
}

// registerPages wires the HTML surface. Pages are guest-only except the
// dashboard; each GET provisions a CSRF token for the forms it renders.
func (r *Router) registerPages() {
	pages := &PageHandler{Csrf: r.Csrf}

	guestPage := []httpx.Link{
		httpx.MemRateLimit(httpx.PublicLimit),
		r.guestOnly(),
		r.Csrf.Middleware(),
	}

	r.Mux.Handle("GET /{$}", httpx.Chain(http.HandlerFunc(pages.Login), guestPage...))
	r.Mux.Handle("GET /register", httpx.Chain(http.HandlerFunc(pages.Register), guestPage...))
	r.Mux.Handle("GET /register/success", httpx.Chain(http.HandlerFunc(pages.RegisterSuccess), guestPage...))
	r.Mux.Handle("GET /forgot-password", httpx.Chain(http.HandlerFunc(pages.ForgotPassword), guestPage...))

	r.Mux.Handle("GET /dashboard",
		httpx.Chain(http.HandlerFunc(pages.Dashboard),
			r.requireAuth(),
			r.rateLimit(service.ActionSession),
			r.Csrf.Middleware(),
		),
	)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Users: r.UserService, Tokens: r.TokenService}
	register := &RegisterHandler{Users: r.UserService}
	session := &SessionHandler{Tokens: r.TokenService, Users: r.UserService}

	// POST /login - the limiter runs before anything touches
	// credentials, so a locked-out address is rejected even with the
	// right password.
	r.Mux.Handle("POST /login",
		httpx.Chain(login,
			r.rateLimit(service.ActionLogin),
			r.guestOnly(),
			r.Csrf.Middleware(),
		),
	)

	r.Mux.Handle("POST /register",
		httpx.Chain(register,
			r.rateLimit(service.ActionRegister),
			r.guestOnly(),
			r.Csrf.Middleware(),
			httpx.JSONInput(),
		),
	)

	// POST /refresh - no auth gate: the access token may already be
	// expired, the refresh token itself is the credential.
	r.Mux.Handle("POST /refresh",
		httpx.Chain(http.HandlerFunc(session.Refresh),
			r.rateLimit(service.ActionSession),
			r.Csrf.Middleware(),
		),
	)

	r.Mux.Handle("POST /logout",
		httpx.Chain(http.HandlerFunc(session.Logout),
			r.requireAuth(),
			r.rateLimit(service.ActionSession),
			r.Csrf.Middleware(),
		),
	)

	r.Mux.Handle("POST /password/change",
		httpx.Chain(http.HandlerFunc(session.ChangePassword),
			r.requireAuth(),
			r.rateLimit(service.ActionSession),
			r.Csrf.Middleware(),
			httpx.JSONInput(),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.MemRateLimit(httpx.HealthLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.kv),
			httpx.MemRateLimit(httpx.HealthLimit),
		),
	)
}
