package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/growthwatch/platform/pkg/alerts"
	"github.com/growthwatch/platform/pkg/common/logger"
	gatewayauth "github.com/growthwatch/platform/pkg/gateway/auth"
	"github.com/growthwatch/platform/pkg/gateway/middleware"
	"github.com/growthwatch/platform/pkg/identity"
	"github.com/growthwatch/platform/pkg/observability/metrics"
	"github.com/growthwatch/platform/pkg/registry"
)

type Dependencies struct {
	Identity *identity.Service
	Registry *registry.Service
	Alerts   *alerts.Service
	Tokens   *gatewayauth.JWTManager

	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error

	MaxBodyBytes    int64
	PublicRateRPS   int
	PublicRateBurst int
}

// NewRouter assembles the full HTTP surface under /api/v1 plus the health checks
// and /metrics.
func NewRouter(deps Dependencies) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	if deps.MaxBodyBytes > 0 {
		router.Use(middleware.BodyLimit(deps.MaxBodyBytes))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logger.Log.WithError(err).Warn("Readiness check failed")
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	public := api.PathPrefix("/public").Subrouter()
	if deps.PublicRateRPS > 0 {
		public.Use(middleware.RateLimit(deps.PublicRateRPS, deps.PublicRateBurst))
	}
	NewPublicHandler(deps.Registry).Register(public)

	authHandler := NewAuthHandler(deps.Identity, deps.Tokens)
	authHandler.RegisterPublic(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(deps.Tokens, deps.Identity))
	authHandler.Register(protected)
	NewChildHandler(deps.Registry).Register(protected)
	NewMeasurementHandler(deps.Registry).Register(protected)
	alertService := deps.Alerts
	if alertService == nil {
		alertService = alerts.NewService(nil)
	}
	NewAlertHandler(alertService).Register(protected)

	return router
}
