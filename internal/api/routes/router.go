package routes

import (
	"net/http"

	"github.com/zatekoja/obstetric-locator/internal/api/handlers"
	"github.com/zatekoja/obstetric-locator/internal/api/middleware"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
)

// APIPrefix is the versioned prefix every endpoint is mounted under.
const APIPrefix = "/api/v1"

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	emergencyHandler     *handlers.EmergencyHandler
	establishmentHandler *handlers.EstablishmentHandler
	healthHandler        *handlers.HealthHandler
	adminHandler         *handlers.AdminHandler

	adminToken     string
	allowedOrigins []string
	metrics        *observability.Metrics
}

// RouterOptions carries the middleware settings.
type RouterOptions struct {
	AdminToken     string
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	emergencyHandler *handlers.EmergencyHandler,
	establishmentHandler *handlers.EstablishmentHandler,
	healthHandler *handlers.HealthHandler,
	adminHandler *handlers.AdminHandler,
	opts RouterOptions,
) *Router {
	return &Router{
		mux:                  http.NewServeMux(),
		emergencyHandler:     emergencyHandler,
		establishmentHandler: establishmentHandler,
		healthHandler:        healthHandler,
		adminHandler:         adminHandler,
		adminToken:           opts.AdminToken,
		allowedOrigins:       opts.AllowedOrigins,
		metrics:              opts.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Bare liveness probe for load balancers
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Emergency search
	r.mux.HandleFunc("GET "+APIPrefix+"/emergency/search", r.emergencyHandler.Search)
	r.mux.HandleFunc("POST "+APIPrefix+"/emergency/reload", r.emergencyHandler.Reload)

	// Establishment details
	r.mux.HandleFunc("GET "+APIPrefix+"/establishments/{cnes_id}", r.establishmentHandler.GetEstablishment)
	r.mux.HandleFunc("GET "+APIPrefix+"/establishments/{cnes_id}/evidence", r.establishmentHandler.GetEvidence)

	// Liveness and version metadata
	r.mux.HandleFunc("GET "+APIPrefix+"/facilities/health", r.healthHandler.Health)
	r.mux.HandleFunc("GET "+APIPrefix+"/version", r.healthHandler.Version)

	// Admin-gated debug endpoints
	admin := middleware.AdminOnly(r.adminToken)
	r.mux.Handle("GET "+APIPrefix+"/debug/overrides/coverage", admin(http.HandlerFunc(r.adminHandler.OverridesCoverage)))
	r.mux.Handle("POST "+APIPrefix+"/debug/overrides/refresh", admin(http.HandlerFunc(r.adminHandler.RefreshOverrides)))
	r.mux.Handle("POST "+APIPrefix+"/debug/geo/refresh", admin(http.HandlerFunc(r.adminHandler.RefreshGeo)))

	// Apply middleware. The observability layer is outermost so the access
	// log sees the span context and the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	return handler
}
