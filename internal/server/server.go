// Package server provides the HTTP server and routing for Meowney.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clients/exchangerate"
	"github.com/meowney/meowney/internal/config"
	"github.com/meowney/meowney/internal/database"
	analyticshandlers "github.com/meowney/meowney/internal/modules/analytics/handlers"
	dashboardhandlers "github.com/meowney/meowney/internal/modules/dashboard/handlers"
	portfoliohandlers "github.com/meowney/meowney/internal/modules/portfolio/handlers"
	rebalancehandlers "github.com/meowney/meowney/internal/modules/rebalance/handlers"
	settingshandlers "github.com/meowney/meowney/internal/modules/settings/handlers"
)

// Config holds server configuration
type Config struct {
	Log               zerolog.Logger
	Cfg               *config.Config
	PortfolioDB       *database.DB
	CacheDB           *database.DB
	ExchangeClient    *exchangerate.Client
	PortfolioHandlers *portfoliohandlers.Handler
	RebalanceHandlers *rebalancehandlers.Handler
	DashboardHandlers *dashboardhandlers.Handler
	AnalyticsHandlers *analyticshandlers.Handler
	SettingsHandlers  *settingshandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	portfolioDB    *database.DB
	cacheDB        *database.DB
	systemHandlers *SystemHandlers
	rateHandlers   *RateHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Cfg,
		portfolioDB:    cfg.PortfolioDB,
		cacheDB:        cfg.CacheDB,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Cfg.DataDir, cfg.PortfolioDB, cfg.CacheDB),
		rateHandlers:   NewRateHandlers(cfg.ExchangeClient, cfg.Cfg.BaseCurrency, cfg.Log),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)
		r.Get("/system/info", s.systemHandlers.HandleSystemInfo)
		r.Get("/exchange-rate", s.rateHandlers.HandleGetExchangeRate)

		if cfg.PortfolioHandlers != nil {
			cfg.PortfolioHandlers.RegisterRoutes(r)
		}
		if cfg.RebalanceHandlers != nil {
			cfg.RebalanceHandlers.RegisterRoutes(r)
		}
		if cfg.DashboardHandlers != nil {
			cfg.DashboardHandlers.RegisterRoutes(r)
		}
		if cfg.AnalyticsHandlers != nil {
			cfg.AnalyticsHandlers.RegisterRoutes(r)
		}
		if cfg.SettingsHandlers != nil {
			cfg.SettingsHandlers.RegisterRoutes(r)
		}
	})
}

// Start begins serving requests
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs each request with status and timing
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
