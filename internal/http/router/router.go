package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/straye-as/pipeline-gateway/internal/auth"
	"github.com/straye-as/pipeline-gateway/internal/config"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/http/handler"
	"github.com/straye-as/pipeline-gateway/internal/http/middleware"
	"go.uber.org/zap"
)

type Router struct {
	cfg               *config.Config
	logger            *zap.Logger
	authMiddleware    *auth.Middleware
	rateLimiter       *middleware.RateLimiter
	healthHandler     *handler.HealthHandler
	leadHandler       *handler.LeadHandler
	transitionHandler *handler.TransitionHandler
	activityHandler   *handler.ActivityHandler
	dashboardHandler  *handler.DashboardHandler
	teamHandler       *handler.TeamHandler
	reportHandler     *handler.ReportHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	healthHandler *handler.HealthHandler,
	leadHandler *handler.LeadHandler,
	transitionHandler *handler.TransitionHandler,
	activityHandler *handler.ActivityHandler,
	dashboardHandler *handler.DashboardHandler,
	teamHandler *handler.TeamHandler,
	reportHandler *handler.ReportHandler,
) *Router {
	return &Router{
		cfg:               cfg,
		logger:            logger,
		authMiddleware:    authMiddleware,
		rateLimiter:       rateLimiter,
		healthHandler:     healthHandler,
		leadHandler:       leadHandler,
		transitionHandler: transitionHandler,
		activityHandler:   activityHandler,
		dashboardHandler:  dashboardHandler,
		teamHandler:       teamHandler,
		reportHandler:     reportHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)
	if d := rt.cfg.Server.RequestTimeoutDuration(); d > 0 {
		r.Use(chimw.Timeout(d))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		domain.WriteProblem(w, domain.NewAPIError(http.StatusNotFound, "No route for "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		domain.WriteProblem(w, domain.NewAPIError(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	r.Get("/health", rt.healthHandler.Health)
	r.Get("/health/ready", rt.healthHandler.Ready)
	if rt.cfg.Metrics.Enabled {
		r.Handle(rt.cfg.Metrics.Path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.LimitByUser)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireWrite)

			r.Get("/board", rt.leadHandler.Board)
			r.Post("/refresh", rt.leadHandler.Refresh)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", rt.leadHandler.List)
				r.Post("/", rt.leadHandler.Create)
				r.Get("/{id}", rt.leadHandler.Get)
				r.Put("/{id}", rt.leadHandler.Update)
				r.Post("/{id}/transitions", rt.transitionHandler.Begin)
				r.Get("/{id}/activities", rt.activityHandler.Feed)
				r.Post("/{id}/activities", rt.activityHandler.Create)
			})

			r.Route("/transitions", func(r chi.Router) {
				r.Get("/", rt.transitionHandler.List)
				r.Get("/{id}", rt.transitionHandler.Get)
				r.Post("/{id}/confirm", rt.transitionHandler.Confirm)
				r.Post("/{id}/cancel", rt.transitionHandler.Cancel)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", rt.reportHandler.List)
				r.Post("/pipeline", rt.reportHandler.Export)
				r.Get("/{name}", rt.reportHandler.Download)
			})
		})

		r.Get("/metrics/pipeline", rt.dashboardHandler.PipelineMetrics)
		r.Get("/dashboard/stats", rt.dashboardHandler.Stats)

		r.Route("/team", func(r chi.Router) {
			r.Get("/", rt.teamHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(domain.TeamRoleAdmin))
				r.Post("/", rt.teamHandler.Create)
				r.Put("/{id}", rt.teamHandler.Update)
				r.Delete("/{id}", rt.teamHandler.Delete)
			})
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", rt.teamHandler.GetProfile)
			r.Put("/", rt.teamHandler.UpdateProfile)
			r.Put("/password", rt.teamHandler.ChangePassword)
		})
	})

	return r
}
