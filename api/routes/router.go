package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mora-interactive/prizevault-backend/api/controllers"
	"github.com/mora-interactive/prizevault-backend/api/middleware"
	containersvc "github.com/mora-interactive/prizevault-backend/internal/containers"
	drawsvc "github.com/mora-interactive/prizevault-backend/internal/draw"
	healthsvc "github.com/mora-interactive/prizevault-backend/internal/health"
	overridesvc "github.com/mora-interactive/prizevault-backend/internal/overrides"
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
	"github.com/mora-interactive/prizevault-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	containerService containersvc.Service,
	drawService drawsvc.Service,
	overrideService overridesvc.Service,
	healthService healthsvc.Service,
	decisionRepo drawsvc.DecisionRepository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS())
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/draws", controllers.ExecuteDraw(drawService, logg))

		r.Get("/containers", controllers.ListContainers(containerService, logg))
		r.Post("/containers", controllers.CreateContainer(containerService, logg))

		r.Route("/containers/{containerTypeId}", func(r chi.Router) {
			r.Put("/", controllers.ConfigureContainer(containerService, logg))
			r.Get("/entries", controllers.ListPrizeEntries(containerService, logg))
			r.Put("/entries", controllers.UpsertPrizeEntry(containerService, logg))
			r.Get("/health", controllers.ContainerHealth(healthService, logg))
			r.Get("/decisions", controllers.ListDrawDecisions(decisionRepo, logg))
			r.Post("/programmed-prizes", controllers.ScheduleProgrammedPrize(overrideService, logg))
		})

		r.Delete("/programmed-prizes/{programmedPrizeId}", controllers.RevokeProgrammedPrize(overrideService, logg))
	})

	return r
}
