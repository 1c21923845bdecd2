package dashboard

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../database/schemas/portfolio_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func newTestHistoryRepo(t *testing.T) *HistoryRepository {
	return NewHistoryRepository(setupTestDB(t), zerolog.Nop())
}

func TestHistoryRepository_UpsertAndGet(t *testing.T) {
	repo := newTestHistoryRepo(t)

	snapshot := &Snapshot{
		SnapshotDate:   "2026-08-28",
		TotalValue:     1000000,
		TotalPrincipal: 900000,
		TotalProfit:    100000,
		ProfitRate:     11.11,
		CategoryBreakdown: map[string]float64{
			"Stocks": 700000,
			"Bonds":  300000,
		},
	}
	require.NoError(t, repo.Upsert(snapshot))

	history, err := repo.GetHistory("default", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	assert.Equal(t, "2026-08-28", got.SnapshotDate)
	assert.Equal(t, 1000000.0, got.TotalValue)
	assert.Equal(t, 700000.0, got.CategoryBreakdown["Stocks"])
}

func TestHistoryRepository_SameDateOverwrites(t *testing.T) {
	repo := newTestHistoryRepo(t)

	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: "2026-08-28", TotalValue: 100}))
	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: "2026-08-28", TotalValue: 200}))

	history, err := repo.GetHistory("default", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 200.0, history[0].TotalValue)
}

func TestHistoryRepository_DateOrderAndWindow(t *testing.T) {
	repo := newTestHistoryRepo(t)

	old := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	recent := time.Now().AddDate(0, 0, -2).Format("2006-01-02")
	today := time.Now().Format("2006-01-02")

	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: recent, TotalValue: 2}))
	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: old, TotalValue: 1}))
	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: today, TotalValue: 3}))

	all, err := repo.GetHistory("default", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1.0, all[0].TotalValue)
	assert.Equal(t, 3.0, all[2].TotalValue)

	windowed, err := repo.GetHistory("default", 7)
	require.NoError(t, err)
	require.Len(t, windowed, 2)
	assert.Equal(t, 2.0, windowed[0].TotalValue)
}

func TestHistoryRepository_RequiresDate(t *testing.T) {
	repo := newTestHistoryRepo(t)
	assert.Error(t, repo.Upsert(&Snapshot{TotalValue: 1}))
}

func TestHistoryRepository_DeleteOlderThan(t *testing.T) {
	repo := newTestHistoryRepo(t)

	old := time.Now().AddDate(0, 0, -400).Format("2006-01-02")
	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: old, TotalValue: 1}))
	require.NoError(t, repo.Upsert(&Snapshot{SnapshotDate: time.Now().Format("2006-01-02"), TotalValue: 2}))

	deleted, err := repo.DeleteOlderThan("default", 365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := repo.GetHistory("default", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
