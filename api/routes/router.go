package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardd-labs/cardd-backend/api/controllers"
	"github.com/cardd-labs/cardd-backend/api/middleware"
	"github.com/cardd-labs/cardd-backend/internal/agents"
	"github.com/cardd-labs/cardd-backend/internal/dispatch"
	"github.com/cardd-labs/cardd-backend/internal/estimation"
	"github.com/cardd-labs/cardd-backend/internal/notify"
	"github.com/cardd-labs/cardd-backend/internal/requests"
	"github.com/cardd-labs/cardd-backend/pkg/config"
	"github.com/cardd-labs/cardd-backend/pkg/db"
	"github.com/cardd-labs/cardd-backend/pkg/logger"
	"github.com/cardd-labs/cardd-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	dispatchService dispatch.Service,
	requestsService requests.Service,
	agentsService agents.Service,
	estimator estimation.Estimator,
	streamer *notify.Streamer,
	metricsGatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if metricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", controllers.CreateRequest(dispatchService, logg))
			r.Get("/{requestId}", controllers.RequestDetail(requestsService, logg))
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/requests", controllers.UserRequests(requestsService, logg))
			r.Get("/events", controllers.UserEvents(streamer, cfg.Dispatch.StreamHeartbeat, logg))
		})

		r.Route("/agents/{agentId}", func(r chi.Router) {
			r.Get("/requests", controllers.AgentRequests(requestsService, logg))
			r.Post("/requests/{requestId}/{action}", controllers.AgentRespond(dispatchService, logg))
		})

		r.Post("/estimates", controllers.CreateEstimate(estimator, dispatchService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Post("/", controllers.AdminAgentCreate(agentsService, logg))
			r.Get("/", controllers.AdminAgentList(agentsService, logg))
			r.Post("/{agentId}/availability", controllers.AdminAgentAvailability(agentsService, logg))
		})
	})

	return r
}
