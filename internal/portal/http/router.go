package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
)

// Router wires every handler behind the shared middleware stack:
// request logging, CORS, the per-IP throttle, and the auth gate.
type Router struct {
	Logger   *slog.Logger
	Store    store.Store
	Keys     *tokenx.KeySet
	Gate     *httpx.Gate
	Throttle httpx.ThrottleConfig

	Auth      *service.AuthService
	TwoFactor *service.TwoFactorService
	Reset     *service.ResetService
	Accounts  *service.AccountService
	Directory *service.DirectoryService
	Limiter   *limitx.Limiter

	CORSOrigins  []string
	Version      string
	CookieMaxAge time.Duration
	CookieSecure bool
}

// Handler builds the chi mux. Middleware order matters: logging wraps
// everything, the throttle runs before any token work, and the gate
// runs last so throttled requests never touch the verifier.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(slogx.HTTPMiddleware(rt.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Refreshed-Token", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httpx.Throttle(rt.Throttle))
	r.Use(rt.Gate.Middleware())

	startTime := time.Now()

	auth := &AuthHandler{Auth: rt.Auth, CookieMaxAge: rt.CookieMaxAge, CookieSecure: rt.CookieSecure}
	twoFactor := &TwoFactorHandler{TwoFactor: rt.TwoFactor}
	reset := &ResetHandler{Reset: rt.Reset}
	accounts := &AccountHandler{Accounts: rt.Accounts}
	profile := &ProfileHandler{Directory: rt.Directory}
	admin := &AdminHandler{Directory: rt.Directory, Limiter: rt.Limiter}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", auth.HandleLogin)
		r.Post("/logout", auth.HandleLogout)
		r.Post("/register", accounts.HandleRegister)
		r.Post("/verify-email", accounts.HandleVerifyEmail)

		r.Route("/2fa", func(r chi.Router) {
			r.Post("/verify", auth.HandleVerify)
			r.Post("/enroll", twoFactor.HandleEnroll)
			r.Post("/activate", twoFactor.HandleActivate)
			r.Post("/disable", twoFactor.HandleDisable)
		})

		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/", reset.HandleRequest)
			r.Post("/apply", reset.HandleApply)
		})
	})

	r.Get("/me", profile.HandleMe)
	r.Get("/users/{id}", profile.HandleGetUser)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", admin.HandleListUsers)
		r.Put("/users/{id}/role", admin.HandleSetRole)
		r.Post("/rate-limits/reset", admin.HandleLimitReset)
	})

	r.Get("/livez", LivezHandler(startTime, rt.Version))
	r.Get("/readyz", ReadyzHandler(startTime, rt.Version, rt.Store, rt.Keys))

	return r
}
