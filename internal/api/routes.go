package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/if-inbounds/internal/config"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	proxy      http.Handler
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router. proxy may be nil, in which case
// /api/if is not served.
func NewRouter(inbounds InboundService, tracker Tracker, prefs PreferenceStore, proxy http.Handler, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(inbounds, tracker, prefs, cfg, log),
		middleware: NewMiddleware(log),
		proxy:      proxy,
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)

	router.Route("/api/v1", func(router chi.Router) {
		router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

		// Airport routes
		router.Get("/airports/active", r.handler.GetActiveAirports)
		router.Get("/airports/{icao}/inbounds", r.handler.GetInbounds)
		router.Get("/airports/{icao}/atis", r.handler.GetATIS)
		router.Get("/airports/{icao}/controllers", r.handler.GetControllers)

		// ATC overview
		router.Get("/atc", r.handler.GetATCSummary)

		// Tracking routes
		router.Get("/tracking", r.handler.GetTracking)
		router.Post("/tracking", r.handler.StartTracking)
		router.Delete("/tracking", r.handler.StopTracking)

		// Preferences
		router.Get("/preferences", r.handler.GetPreferences)
		router.Put("/preferences", r.handler.PutPreferences)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	if r.proxy != nil {
		router.Mount("/api/if", r.proxy)
	}

	return router
}
