package http

import (
	"net/http"

	"github.com/atinyakov/ResQWave/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler of the development backend.
//
// Routes:
//
//	POST /focal/login             → authHandler.Login
//	POST /focal/verify            → authHandler.Verify
//	POST /focal/resend            → authHandler.Resend
//	GET  /me                      → authHandler.Me            (BearerAuth)
//	POST /logout                  → authHandler.Logout        (BearerAuth)
//	GET  /neighborhood/map/own    → hoodHandler.MapOwn        (BearerAuth)
//	GET  /neighborhood/map/others → hoodHandler.MapOthers     (BearerAuth)
//	GET  /neighborhood/own        → hoodHandler.Details       (BearerAuth)
//	PUT  /neighborhood/{id}       → hoodHandler.Update        (BearerAuth)
//	GET  /metrics                 → metricsHandler
func NewRouter(
	authHandler *AuthHandler,
	hoodHandler *NeighborhoodHandler,
	metricsHandler http.Handler,
	parser middleware.TokenParser,
	revocations middleware.RevocationChecker,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Handle("/metrics", metricsHandler)

	r.Route("/focal", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/verify", authHandler.Verify)
		r.Post("/resend", authHandler.Resend)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(parser, revocations, logger))

		r.Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)

		r.Route("/neighborhood", func(r chi.Router) {
			r.Get("/map/own", hoodHandler.MapOwn)
			r.Get("/map/others", hoodHandler.MapOthers)
			r.Get("/own", hoodHandler.Details)
			r.Put("/{id}", hoodHandler.Update)
		})
	})

	return r
}
