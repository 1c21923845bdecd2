// Package main is the entry point for the Meowney portfolio rebalancing
// service. It wires configuration, databases, repositories, services and
// the HTTP server explicitly, then runs until a shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/meowney/meowney/internal/clientdata"
	"github.com/meowney/meowney/internal/clients/exchangerate"
	"github.com/meowney/meowney/internal/clients/quotes"
	"github.com/meowney/meowney/internal/config"
	"github.com/meowney/meowney/internal/database"
	"github.com/meowney/meowney/internal/modules/analytics"
	analyticshandlers "github.com/meowney/meowney/internal/modules/analytics/handlers"
	"github.com/meowney/meowney/internal/modules/dashboard"
	dashboardhandlers "github.com/meowney/meowney/internal/modules/dashboard/handlers"
	"github.com/meowney/meowney/internal/modules/portfolio"
	portfoliohandlers "github.com/meowney/meowney/internal/modules/portfolio/handlers"
	"github.com/meowney/meowney/internal/modules/rebalance"
	rebalancehandlers "github.com/meowney/meowney/internal/modules/rebalance/handlers"
	"github.com/meowney/meowney/internal/modules/settings"
	settingshandlers "github.com/meowney/meowney/internal/modules/settings/handlers"
	"github.com/meowney/meowney/internal/scheduler"
	"github.com/meowney/meowney/internal/server"
	"github.com/meowney/meowney/pkg/logger"
)

const defaultPortfolioID = "default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Meowney")

	// Databases: durable portfolio data and the ephemeral client cache.
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{portfolioDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// External API clients share the persistent cache.
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	exchangeClient := exchangerate.NewClient(cfg.ExchangeRateURL, cacheRepo, log)
	quotesClient := quotes.NewClient(cfg.QuotesURL, cacheRepo, log)

	// Repositories and services.
	portfolioRepo := portfolio.NewRepository(portfolioDB.Conn(), log)
	portfolioService := portfolio.NewService(portfolioRepo, quotesClient, exchangeClient, cfg.BaseCurrency, log)

	planRepo := rebalance.NewPlanRepository(portfolioDB.Conn(), log)
	rebalanceService := rebalance.NewService(planRepo, portfolioService, exchangeClient, cfg.BaseCurrency, log)

	historyRepo := dashboard.NewHistoryRepository(portfolioDB.Conn(), log)
	dashboardService := dashboard.NewService(portfolioService, planRepo, historyRepo, log)

	analyticsService := analytics.NewService(dashboardService, log)

	settingsRepo := settings.NewRepository(portfolioDB.Conn(), log)
	settingsService := settings.NewService(settingsRepo, log)

	// Background jobs.
	jobs := scheduler.New(log)
	scheduledJobs := map[string]scheduler.Job{
		scheduler.ScheduleDailySnapshot: scheduler.NewDailySnapshotJob(dashboardService, defaultPortfolioID, log),
		scheduler.ScheduleRateRefresh:   scheduler.NewRateRefreshJob(exchangeClient, cfg.BaseCurrency, log),
		scheduler.ScheduleCacheCleanup:  scheduler.NewCacheCleanupJob(cacheRepo, 24*time.Hour, log),
	}
	for schedule, job := range scheduledJobs {
		if err := jobs.AddJob(schedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to schedule job")
		}
	}
	jobs.Start()
	defer jobs.Stop()

	// HTTP server.
	srv := server.New(server.Config{
		Log:               log,
		Cfg:               cfg,
		PortfolioDB:       portfolioDB,
		CacheDB:           cacheDB,
		ExchangeClient:    exchangeClient,
		PortfolioHandlers: portfoliohandlers.NewHandler(portfolioService, log),
		RebalanceHandlers: rebalancehandlers.NewHandler(rebalanceService, log),
		DashboardHandlers: dashboardhandlers.NewHandler(dashboardService, log),
		AnalyticsHandlers: analyticshandlers.NewHandler(analyticsService, log),
		SettingsHandlers:  settingshandlers.NewHandler(settingsService, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Meowney stopped")
}
