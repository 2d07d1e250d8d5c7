// Package httpapi exposes the authentication engine over HTTP with chi.
//
// JSON endpoints live under /api and check session, ban and role inline.
// Everything else is treated as a page navigation and passes through the
// route authorizer before reaching the page handler.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/middleware"
	"github.com/MrEthical07/folioAuth/oauth"
	"github.com/MrEthical07/folioAuth/route"
)

// Options wires the router's collaborators. Engine is required.
type Options struct {
	Engine *folioAuth.Engine

	// OAuth enables /oauth/{provider}/start and /callback when set.
	OAuth *oauth.Client

	// Authorizer gates page navigations. Defaults to the default table and
	// pages.
	Authorizer *route.Authorizer

	// Pages renders allowed page navigations. Defaults to a JSON 404.
	Pages http.Handler

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	Logger *slog.Logger
}

// NewRouter returns the HTTP handler for the whole service.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authz := opts.Authorizer
	if authz == nil {
		authz = route.NewAuthorizer(route.DefaultTable(), route.DefaultPages())
	}
	pages := opts.Pages
	if pages == nil {
		pages = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{Code: "not_found", Message: "page not found"}})
		})
	}

	h := &handler{
		engine: opts.Engine,
		oauth:  opts.OAuth,
		pages:  authz.Pages(),
		logger: logger,
		errs:   errorResponder{logger: logger},
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(chimw.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(requestContext)
	r.Use(middleware.Session(opts.Engine, logger))
	r.Use(RequestLogger(logger))

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	requireSession := middleware.RequireSession(h.errs.write)
	requireAdmin := middleware.RequireAdmin(h.errs.write)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Get("/session", h.session)

		r.Get("/verify-email", h.verifyEmail)
		r.Post("/verify-email/resend", h.resendVerification)
		r.Post("/forgot-password", h.forgotPassword)
		r.Get("/validate-token", h.validateToken)
		r.Post("/reset-password", h.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/2fa/setup", h.setupTwoFactor)
			r.Post("/2fa/verify", h.verifyTwoFactor)
			r.Get("/2fa/status", h.twoFactorStatus)
		})

		r.Route("/admin/accounts/{id}", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", h.adminGetAccount)
			r.Post("/ban", h.adminBan)
			r.Post("/unban", h.adminUnban)
			r.Put("/role", h.adminSetRole)
			r.Delete("/", h.adminDelete)
		})
	})

	if opts.OAuth != nil {
		r.Get("/oauth/{provider}/start", h.oauthStart)
		r.Get("/oauth/{provider}/callback", h.oauthCallback)
	}

	r.With(middleware.Gate(authz)).Handle("/*", pages)

	return r
}

type handler struct {
	engine *folioAuth.Engine
	oauth  *oauth.Client
	pages  route.Pages
	logger *slog.Logger
	errs   errorResponder
}
