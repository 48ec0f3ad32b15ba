package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	mw "github.com/auxoro/cas-server/internal/adapters/primary/http/middleware"
	"github.com/auxoro/cas-server/internal/auth"
)

// NewRouter assembles the protocol endpoints behind the standard middleware
// chain. Protocol endpoints are GET-only; chi answers other methods with 405.
// healthHandler and loginLimiter may be nil in tests.
func NewRouter(
	login *LoginHandler,
	validation *ValidationHandler,
	health *HealthHandler,
	sessions *auth.SessionManager,
	loginLimiter *mw.RateLimiter,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RecoveryLogger(logger))
	r.Use(mw.RequestLogger(logger))

	r.Group(func(r chi.Router) {
		r.Use(mw.Session(sessions))
		r.Get("/login", login.HandleLoginForm)
		if loginLimiter != nil {
			r.With(loginLimiter.Middleware).Post("/login", login.HandleLogin)
		} else {
			r.Post("/login", login.HandleLogin)
		}
		r.Get("/logout", login.HandleLogout)
	})

	r.Get("/validate", validation.HandleValidate)
	r.Get("/serviceValidate", validation.HandleServiceValidate)
	r.Get("/proxyValidate", validation.HandleProxyValidate)
	r.Get("/proxy", validation.HandleProxy)

	if health != nil {
		health.RegisterRoutes(r)
	}

	return r
}
