package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/clientdata"
	"github.com/meowney/meowney/internal/domain"
	"github.com/meowney/meowney/internal/modules/dashboard"
)

// Cron schedules. Snapshots run just before midnight so a day's record
// reflects the closing state; rates warm hourly to keep the cache fresh.
const (
	ScheduleDailySnapshot = "50 23 * * *"
	ScheduleRateRefresh   = "@hourly"
	ScheduleCacheCleanup  = "15 4 * * *"
)

// SnapshotTaker records a daily portfolio snapshot.
type SnapshotTaker interface {
	TakeSnapshot(portfolioID string) (*dashboard.Snapshot, error)
}

// DailySnapshotJob records the portfolio's end-of-day totals.
type DailySnapshotJob struct {
	dashboard   SnapshotTaker
	portfolioID string
	log         zerolog.Logger
}

// NewDailySnapshotJob creates a new daily snapshot job
func NewDailySnapshotJob(dashboardService SnapshotTaker, portfolioID string, log zerolog.Logger) *DailySnapshotJob {
	return &DailySnapshotJob{
		dashboard:   dashboardService,
		portfolioID: portfolioID,
		log:         log.With().Str("job", "daily_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *DailySnapshotJob) Name() string { return "daily_snapshot" }

// Run records today's snapshot
func (j *DailySnapshotJob) Run() error {
	if j.dashboard == nil {
		return fmt.Errorf("dashboard service not available")
	}

	snapshot, err := j.dashboard.TakeSnapshot(j.portfolioID)
	if err != nil {
		return fmt.Errorf("failed to take snapshot: %w", err)
	}

	j.log.Info().
		Str("date", snapshot.SnapshotDate).
		Float64("total_value", snapshot.TotalValue).
		Msg("Daily snapshot recorded")

	return nil
}

// RateProvider fetches an exchange rate (warming the cache as a side effect).
type RateProvider interface {
	GetRate(fromCurrency, toCurrency string) (domain.ExchangeRate, error)
}

// RateRefreshJob keeps the USD rate cache warm so user requests rarely
// wait on the upstream API.
type RateRefreshJob struct {
	rates        RateProvider
	baseCurrency string
	log          zerolog.Logger
}

// NewRateRefreshJob creates a new rate refresh job
func NewRateRefreshJob(rates RateProvider, baseCurrency string, log zerolog.Logger) *RateRefreshJob {
	return &RateRefreshJob{
		rates:        rates,
		baseCurrency: baseCurrency,
		log:          log.With().Str("job", "rate_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RateRefreshJob) Name() string { return "rate_refresh" }

// Run fetches the current USD rate
func (j *RateRefreshJob) Run() error {
	if j.rates == nil {
		return fmt.Errorf("rate provider not available")
	}

	rate, err := j.rates.GetRate("USD", j.baseCurrency)
	if err != nil {
		return fmt.Errorf("failed to refresh rate: %w", err)
	}

	j.log.Debug().
		Str("to", j.baseCurrency).
		Float64("rate", rate.Rate).
		Msg("Exchange rate refreshed")

	return nil
}

// CacheCleanupJob purges expired entries from the client data cache.
// Entries within the grace window are kept as stale-fallback material.
type CacheCleanupJob struct {
	cache *clientdata.Repository
	grace time.Duration
	log   zerolog.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache *clientdata.Repository, grace time.Duration, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		grace: grace,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

// Run deletes entries expired for longer than the grace window
func (j *CacheCleanupJob) Run() error {
	if j.cache == nil {
		return fmt.Errorf("cache repository not available")
	}

	deleted, err := j.cache.Cleanup(j.grace)
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cache cleaned")
	}

	return nil
}
