package dashboard

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HistoryRepository handles daily snapshot database operations.
// Database: portfolio.db (asset_history table)
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "asset_history").Logger(),
	}
}

// Upsert records a snapshot. A second snapshot for the same portfolio and
// date overwrites the first, so re-running the daily job is safe.
func (r *HistoryRepository) Upsert(snapshot *Snapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.PortfolioID == "" {
		snapshot.PortfolioID = "default"
	}
	if snapshot.SnapshotDate == "" {
		return fmt.Errorf("snapshot date is required")
	}

	var breakdown interface{}
	if len(snapshot.CategoryBreakdown) > 0 {
		encoded, err := json.Marshal(snapshot.CategoryBreakdown)
		if err != nil {
			return fmt.Errorf("failed to encode category breakdown: %w", err)
		}
		breakdown = string(encoded)
	}

	query := `
		INSERT INTO asset_history (id, portfolio_id, snapshot_date, total_value,
			total_principal, total_profit, profit_rate, category_breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, snapshot_date) DO UPDATE SET
			total_value = excluded.total_value,
			total_principal = excluded.total_principal,
			total_profit = excluded.total_profit,
			profit_rate = excluded.profit_rate,
			category_breakdown = excluded.category_breakdown
	`
	_, err := r.db.Exec(query,
		snapshot.ID, snapshot.PortfolioID, snapshot.SnapshotDate,
		snapshot.TotalValue, snapshot.TotalPrincipal, snapshot.TotalProfit,
		snapshot.ProfitRate, breakdown, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	r.log.Debug().
		Str("date", snapshot.SnapshotDate).
		Float64("total_value", snapshot.TotalValue).
		Msg("Snapshot recorded")

	return nil
}

// GetHistory returns snapshots for the last N days in date order. days <= 0
// returns the full history.
func (r *HistoryRepository) GetHistory(portfolioID string, days int) ([]Snapshot, error) {
	query := `
		SELECT id, portfolio_id, snapshot_date, total_value, total_principal,
			total_profit, profit_rate, category_breakdown, created_at
		FROM asset_history
		WHERE portfolio_id = ?
	`
	args := []interface{}{portfolioID}

	if days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
		query += " AND snapshot_date >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY snapshot_date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var profitRate sql.NullFloat64
		var breakdown sql.NullString
		var createdAtUnix int64

		if err := rows.Scan(&s.ID, &s.PortfolioID, &s.SnapshotDate, &s.TotalValue,
			&s.TotalPrincipal, &s.TotalProfit, &profitRate, &breakdown, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.ProfitRate = profitRate.Float64
		if breakdown.Valid && breakdown.String != "" {
			if err := json.Unmarshal([]byte(breakdown.String), &s.CategoryBreakdown); err != nil {
				r.log.Warn().Err(err).Str("date", s.SnapshotDate).Msg("Malformed category breakdown, skipping field")
			}
		}
		s.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return snapshots, nil
}

// DeleteOlderThan trims history beyond a retention window.
func (r *HistoryRepository) DeleteOlderThan(portfolioID string, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	result, err := r.db.Exec(
		"DELETE FROM asset_history WHERE portfolio_id = ? AND snapshot_date < ?",
		portfolioID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to trim history: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.log.Debug().Int64("deleted", deleted).Str("cutoff", cutoff).Msg("History trimmed")
	}
	return deleted, nil
}
