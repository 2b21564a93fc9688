package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/metrics"
	"github.com/divinevideo/relay-admin/internal/middleware"
)

// NewRouter creates the API router.
func (s *Server) NewRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.logger))
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))
	r.Use(middleware.MaxBodySize(s.cfg.MaxBodyBytes))
	r.Use(middleware.HTTPLogging(s.logger, nil))

	// Public endpoints (no auth)
	r.Get("/health", s.HandleHealth)
	r.Get("/ready", s.HandleReady)
	r.Get("/info", s.HandleInfo)

	// Operator dashboard
	r.Group(func(r chi.Router) {
		r.Use(s.require(s.cfg.Operator))

		r.Post("/moderate", s.HandleModerate)
		r.Post("/relay-rpc", s.HandleRelayRPC)
		r.Get("/decisions", s.HandleListDecisions)
		r.Post("/decisions", s.HandleCreateDecision)
		r.Get("/decisions/{targetId}", s.HandleGetDecisions)
		r.Delete("/decisions/{targetId}", s.HandleReopen)
		r.Post("/moderate-media", s.HandleModerateMedia)
		r.Get("/check-result/{sha256}", s.HandleCheckResult)
		r.Post("/admin/loglevel", s.HandleSetLogLevel)
	})

	// Helpdesk integration
	r.Route("/zendesk", func(r chi.Router) {
		r.With(s.require(s.cfg.Webhook)).Post("/webhook", s.HandleWebhook)
		r.With(s.require(s.cfg.NIP98)).Post("/mobile-jwt", s.HandleMobileJWT)

		r.Group(func(r chi.Router) {
			r.Use(s.require(s.cfg.Helpdesk))
			r.Post("/parse-report", s.HandleParseReport)
			r.Get("/context", s.HandleContext)
			r.Post("/verify", s.HandleVerify)
			r.Post("/action", s.HandleAction)
		})
	})

	return r
}

// require wraps auth.Require. A missing authenticator rejects everything.
func (s *Server) require(a auth.Authenticator) func(http.Handler) http.Handler {
	if a == nil {
		a = auth.AuthenticatorFunc(func(*http.Request) auth.Result {
			return auth.Rejected("", "authentication not configured")
		})
	}
	return auth.Require(a, s.logger)
}
