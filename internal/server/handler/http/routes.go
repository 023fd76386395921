package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/middleware"
)

// NewRouter constructs the HTTP handler of the study backend.
//
// Routes:
//
//	POST /api/auth/signup          → authHandler.Signup
//	POST /api/auth/login           → authHandler.Login
//	POST /api/documents/upload     → studyHandler.Upload       (bearer)
//	POST /api/study/analyze        → studyHandler.Analyze      (bearer)
//	POST /api/study/feynman-check  → studyHandler.FeynmanCheck (bearer)
//	POST /api/study/analogy        → studyHandler.Analogy      (bearer)
//
// Requests are logged, panics are recovered, and protected routes answer
// 403 for a missing or invalid token.
func NewRouter(
	authHandler *AuthHandler,
	studyHandler *StudyHandler,
	verifier middleware.TokenVerifier,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(verifier))
			r.Post("/documents/upload", studyHandler.Upload)
			r.Route("/study", func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/analyze", studyHandler.Analyze)
				r.Post("/feynman-check", studyHandler.FeynmanCheck)
				r.Post("/analogy", studyHandler.Analogy)
			})
		})
	})

	return r
}
