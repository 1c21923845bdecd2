package analytics

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/modules/dashboard"
)

// HistoryProvider supplies daily portfolio snapshots.
type HistoryProvider interface {
	GetHistory(portfolioID string, days int) ([]dashboard.Snapshot, error)
}

// Service computes analytics over snapshot history.
type Service struct {
	history HistoryProvider
	log     zerolog.Logger
}

// NewService creates a new analytics service
func NewService(history HistoryProvider, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		log:     log.With().Str("service", "analytics").Logger(),
	}
}

// GetStats computes statistics for the last N days of snapshots.
func (s *Service) GetStats(portfolioID string, days int) (*Stats, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history provider not available")
	}

	snapshots, err := s.history.GetHistory(portfolioID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	dates := make([]string, len(snapshots))
	values := make([]float64, len(snapshots))
	for i, snapshot := range snapshots {
		dates[i] = snapshot.SnapshotDate
		values[i] = snapshot.TotalValue
	}

	stats := Compute(dates, values)
	return &stats, nil
}
