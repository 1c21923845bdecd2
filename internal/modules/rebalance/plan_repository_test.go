package rebalance

import (
	"database/sql"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory portfolio database with the real schema.
// The pool is pinned to one connection: each in-memory connection is a
// separate database.
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

func newTestRepo(t *testing.T) *PlanRepository {
	return NewPlanRepository(setupTestDB(t), zerolog.Nop())
}

func samplePlan(name string) *Plan {
	return &Plan{
		Name: name,
		Allocations: []AllocationItem{
			{Ticker: "069500", TargetPercentage: 60},
			{Alias: "금현물", TargetPercentage: 40},
		},
	}
}

func TestPlanRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	plan := samplePlan("My Plan")
	plan.Description = "test plan"
	require.NoError(t, repo.CreatePlan(plan))
	require.NotEmpty(t, plan.ID)

	loaded, err := repo.GetPlan(plan.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "My Plan", loaded.Name)
	assert.Equal(t, "test plan", loaded.Description)
	assert.Equal(t, "default", loaded.PortfolioID)
	assert.True(t, loaded.IsActive)
	require.Len(t, loaded.Allocations, 2)
	assert.Equal(t, "069500", loaded.Allocations[0].Ticker)
	assert.Equal(t, 60.0, loaded.Allocations[0].TargetPercentage)
	assert.Equal(t, "금현물", loaded.Allocations[1].Alias)
}

func TestPlanRepository_GetPlanNotFound(t *testing.T) {
	repo := newTestRepo(t)

	plan, err := repo.GetPlan("missing")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanRepository_MainPlanUniqueness(t *testing.T) {
	repo := newTestRepo(t)

	first := samplePlan("First")
	first.IsMain = true
	require.NoError(t, repo.CreatePlan(first))

	second := samplePlan("Second")
	second.IsMain = true
	require.NoError(t, repo.CreatePlan(second))

	main, err := repo.GetMainPlan("default")
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, second.ID, main.ID)

	// The first plan must have been demoted.
	reloaded, err := repo.GetPlan(first.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.False(t, reloaded.IsMain)
}

func TestPlanRepository_SetMain(t *testing.T) {
	repo := newTestRepo(t)

	a := samplePlan("A")
	a.IsMain = true
	require.NoError(t, repo.CreatePlan(a))

	b := samplePlan("B")
	require.NoError(t, repo.CreatePlan(b))

	require.NoError(t, repo.SetMain(b.ID))

	main, err := repo.GetMainPlan("default")
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, b.ID, main.ID)
}

func TestPlanRepository_SoftDelete(t *testing.T) {
	repo := newTestRepo(t)

	plan := samplePlan("Doomed")
	plan.IsMain = true
	require.NoError(t, repo.CreatePlan(plan))

	require.NoError(t, repo.SoftDeletePlan(plan.ID))

	loaded, err := repo.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	plans, err := repo.GetPlans("default")
	require.NoError(t, err)
	assert.Empty(t, plans)

	// A deleted plan stops being the main plan too.
	main, err := repo.GetMainPlan("default")
	require.NoError(t, err)
	assert.Nil(t, main)
}

func TestPlanRepository_SoftDeleteMissing(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.SoftDeletePlan("missing"))
}

func TestPlanRepository_ReplaceAllocations(t *testing.T) {
	repo := newTestRepo(t)

	plan := samplePlan("Plan")
	require.NoError(t, repo.CreatePlan(plan))

	newItems := []AllocationItem{
		{AssetID: "asset-1", DisplayName: "Core", TargetPercentage: 70},
		{Ticker: "MSFT", TargetPercentage: 30},
	}
	require.NoError(t, repo.ReplaceAllocations(plan.ID, newItems))

	loaded, err := repo.GetPlan(plan.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Allocations, 2)
	assert.Equal(t, "asset-1", loaded.Allocations[0].AssetID)
	assert.Equal(t, "Core", loaded.Allocations[0].DisplayName)
	assert.Equal(t, 0, loaded.Allocations[0].DisplayOrder)
	assert.Equal(t, "MSFT", loaded.Allocations[1].Ticker)
	assert.Equal(t, 1, loaded.Allocations[1].DisplayOrder)
}

func TestPlanRepository_ReplaceGroups(t *testing.T) {
	repo := newTestRepo(t)

	plan := samplePlan("Plan")
	require.NoError(t, repo.CreatePlan(plan))

	groups := []AllocationGroup{
		{
			Name:             "Equities",
			TargetPercentage: 80,
			Items: []GroupItem{
				{Ticker: "069500"},
				{Alias: "나스닥"},
			},
		},
		{
			Name:             "Bonds",
			TargetPercentage: 20,
		},
	}
	require.NoError(t, repo.ReplaceGroups(plan.ID, groups))

	loaded, err := repo.GetPlan(plan.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Groups, 2)
	assert.Equal(t, "Equities", loaded.Groups[0].Name)
	require.Len(t, loaded.Groups[0].Items, 2)
	assert.Equal(t, "069500", loaded.Groups[0].Items[0].Ticker)
	assert.Empty(t, loaded.Groups[1].Items)

	// Replacing again drops the old groups entirely.
	require.NoError(t, repo.ReplaceGroups(plan.ID, groups[:1]))
	loaded, err = repo.GetPlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Groups, 1)
}

func TestPlanRepository_ReplaceAllocationsMissingPlan(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.ReplaceAllocations("missing", nil))
}

func TestPlanRepository_UpdatePlan(t *testing.T) {
	repo := newTestRepo(t)

	plan := samplePlan("Old Name")
	require.NoError(t, repo.CreatePlan(plan))

	newName := "New Name"
	prompt := "keep 60/40"
	require.NoError(t, repo.UpdatePlan(plan.ID, PlanUpdate{
		Name:           &newName,
		StrategyPrompt: &prompt,
	}))

	loaded, err := repo.GetPlan(plan.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "New Name", loaded.Name)
	assert.Equal(t, "keep 60/40", loaded.StrategyPrompt)
	// Untouched fields survive a partial update.
	require.Len(t, loaded.Allocations, 2)
}

func TestPlanRepository_GetPlansOrder(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreatePlan(samplePlan("A")))
	require.NoError(t, repo.CreatePlan(samplePlan("B")))

	plans, err := repo.GetPlans("default")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	// Newest first; same-second creations fall back to id order.
	names := []string{plans[0].Name, plans[1].Name}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}
