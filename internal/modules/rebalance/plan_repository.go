package rebalance

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meowney/meowney/internal/database"
)

// PlanRepository handles rebalancing plan database operations.
// Database: portfolio.db (rebalance_plans, plan_allocations,
// allocation_groups, allocation_group_items tables)
type PlanRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *sql.DB, log zerolog.Logger) *PlanRepository {
	return &PlanRepository{
		db:  db,
		log: log.With().Str("repo", "rebalance_plans").Logger(),
	}
}

// GetPlans returns all active plans for a portfolio, newest first, with
// allocations and groups loaded.
func (r *PlanRepository) GetPlans(portfolioID string) ([]Plan, error) {
	query := `
		SELECT id, portfolio_id, name, description, strategy_prompt, is_main, is_active, created_at, updated_at
		FROM rebalance_plans
		WHERE portfolio_id = ? AND is_active = 1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	for i := range plans {
		if err := r.loadPlanChildren(&plans[i]); err != nil {
			return nil, err
		}
	}

	return plans, nil
}

// GetPlan returns a single plan by id with allocations and groups loaded.
// Returns (nil, nil) when the plan does not exist or is soft-deleted.
func (r *PlanRepository) GetPlan(planID string) (*Plan, error) {
	query := `
		SELECT id, portfolio_id, name, description, strategy_prompt, is_main, is_active, created_at, updated_at
		FROM rebalance_plans
		WHERE id = ? AND is_active = 1
	`

	rows, err := r.db.Query(query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading plan: %w", err)
		}
		return nil, nil
	}

	plan, err := scanPlan(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadPlanChildren(&plan); err != nil {
		return nil, err
	}

	return &plan, nil
}

// GetMainPlan returns the portfolio's main plan, or (nil, nil) if none is set.
func (r *PlanRepository) GetMainPlan(portfolioID string) (*Plan, error) {
	query := `
		SELECT id FROM rebalance_plans
		WHERE portfolio_id = ? AND is_main = 1 AND is_active = 1
		LIMIT 1
	`

	var planID string
	err := r.db.QueryRow(query, portfolioID).Scan(&planID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query main plan: %w", err)
	}

	return r.GetPlan(planID)
}

// CreatePlan inserts a new plan. When plan.IsMain is set, any previous main
// plan for the portfolio is demoted in the same transaction.
func (r *PlanRepository) CreatePlan(plan *Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.PortfolioID == "" {
		plan.PortfolioID = "default"
	}
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.IsActive = true

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if plan.IsMain {
			if err := demoteMainPlan(tx, plan.PortfolioID, now.Unix()); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO rebalance_plans (id, portfolio_id, name, description, strategy_prompt, is_main, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		`
		_, err := tx.Exec(query,
			plan.ID, plan.PortfolioID, plan.Name,
			nullableString(plan.Description), nullableString(plan.StrategyPrompt),
			boolToInt(plan.IsMain), now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert plan: %w", err)
		}

		if err := replaceAllocationsTx(tx, plan.ID, plan.Allocations); err != nil {
			return err
		}
		return replaceGroupsTx(tx, plan.ID, plan.Groups)
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("plan_id", plan.ID).
		Str("name", plan.Name).
		Bool("is_main", plan.IsMain).
		Msg("Plan created")

	return nil
}

// PlanUpdate carries optional field updates for a plan. Nil pointers leave
// the stored value unchanged.
type PlanUpdate struct {
	Name           *string
	Description    *string
	StrategyPrompt *string
	IsMain         *bool
}

// UpdatePlan applies a partial update to a plan's metadata.
func (r *PlanRepository) UpdatePlan(planID string, update PlanUpdate) error {
	plan, err := r.GetPlan(planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan not found: %s", planID)
	}

	now := time.Now().Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if update.IsMain != nil && *update.IsMain && !plan.IsMain {
			if err := demoteMainPlan(tx, plan.PortfolioID, now); err != nil {
				return err
			}
		}

		if update.Name != nil {
			plan.Name = *update.Name
		}
		if update.Description != nil {
			plan.Description = *update.Description
		}
		if update.StrategyPrompt != nil {
			plan.StrategyPrompt = *update.StrategyPrompt
		}
		if update.IsMain != nil {
			plan.IsMain = *update.IsMain
		}

		query := `
			UPDATE rebalance_plans
			SET name = ?, description = ?, strategy_prompt = ?, is_main = ?, updated_at = ?
			WHERE id = ?
		`
		_, err := tx.Exec(query,
			plan.Name, nullableString(plan.Description), nullableString(plan.StrategyPrompt),
			boolToInt(plan.IsMain), now, planID)
		if err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}
		return nil
	})
}

// SetMain marks a plan as the portfolio's main plan, demoting any other.
func (r *PlanRepository) SetMain(planID string) error {
	plan, err := r.GetPlan(planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan not found: %s", planID)
	}

	now := time.Now().Unix()

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if err := demoteMainPlan(tx, plan.PortfolioID, now); err != nil {
			return err
		}
		_, err := tx.Exec(
			"UPDATE rebalance_plans SET is_main = 1, updated_at = ? WHERE id = ?",
			now, planID)
		if err != nil {
			return fmt.Errorf("failed to set main plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("plan_id", planID).Msg("Main plan changed")
	return nil
}

// SoftDeletePlan deactivates a plan. Allocations and groups are kept; the
// plan simply stops appearing in listings.
func (r *PlanRepository) SoftDeletePlan(planID string) error {
	result, err := r.db.Exec(
		"UPDATE rebalance_plans SET is_active = 0, is_main = 0, updated_at = ? WHERE id = ?",
		time.Now().Unix(), planID)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("plan not found: %s", planID)
	}

	r.log.Debug().Str("plan_id", planID).Msg("Plan deleted")
	return nil
}

// ReplaceAllocations swaps a plan's allocation items wholesale. The caller
// validates target sums before persisting.
func (r *PlanRepository) ReplaceAllocations(planID string, items []AllocationItem) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if err := touchPlan(tx, planID); err != nil {
			return err
		}
		return replaceAllocationsTx(tx, planID, items)
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("plan_id", planID).Int("items", len(items)).Msg("Allocations replaced")
	return nil
}

// ReplaceGroups swaps a plan's allocation groups wholesale.
func (r *PlanRepository) ReplaceGroups(planID string, groups []AllocationGroup) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if err := touchPlan(tx, planID); err != nil {
			return err
		}
		return replaceGroupsTx(tx, planID, groups)
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("plan_id", planID).Int("groups", len(groups)).Msg("Groups replaced")
	return nil
}

// loadPlanChildren populates a plan's allocations and groups.
func (r *PlanRepository) loadPlanChildren(plan *Plan) error {
	allocations, err := r.getAllocations(plan.ID)
	if err != nil {
		return err
	}
	plan.Allocations = allocations

	groups, err := r.getGroups(plan.ID)
	if err != nil {
		return err
	}
	plan.Groups = groups

	return nil
}

func (r *PlanRepository) getAllocations(planID string) ([]AllocationItem, error) {
	query := `
		SELECT id, asset_id, ticker, alias, display_name, target_percentage, display_order
		FROM plan_allocations
		WHERE plan_id = ?
		ORDER BY display_order, id
	`

	rows, err := r.db.Query(query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan allocations: %w", err)
	}
	defer rows.Close()

	items := []AllocationItem{}
	for rows.Next() {
		var item AllocationItem
		var assetID, ticker, alias, displayName sql.NullString

		if err := rows.Scan(&item.ID, &assetID, &ticker, &alias, &displayName,
			&item.TargetPercentage, &item.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan plan allocation: %w", err)
		}

		item.AssetID = assetID.String
		item.Ticker = ticker.String
		item.Alias = alias.String
		item.DisplayName = displayName.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan allocations: %w", err)
	}

	return items, nil
}

func (r *PlanRepository) getGroups(planID string) ([]AllocationGroup, error) {
	query := `
		SELECT id, name, target_percentage, display_order
		FROM allocation_groups
		WHERE plan_id = ?
		ORDER BY display_order, id
	`

	rows, err := r.db.Query(query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation groups: %w", err)
	}
	defer rows.Close()

	groups := []AllocationGroup{}
	for rows.Next() {
		var group AllocationGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.TargetPercentage, &group.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan allocation group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation groups: %w", err)
	}

	for i := range groups {
		items, err := r.getGroupItems(groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Items = items
	}

	return groups, nil
}

func (r *PlanRepository) getGroupItems(groupID string) ([]GroupItem, error) {
	query := `
		SELECT id, asset_id, ticker, alias
		FROM allocation_group_items
		WHERE group_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group items: %w", err)
	}
	defer rows.Close()

	items := []GroupItem{}
	for rows.Next() {
		var item GroupItem
		var assetID, ticker, alias sql.NullString

		if err := rows.Scan(&item.ID, &assetID, &ticker, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan group item: %w", err)
		}

		item.AssetID = assetID.String
		item.Ticker = ticker.String
		item.Alias = alias.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group items: %w", err)
	}

	return items, nil
}

// replaceAllocationsTx deletes and re-inserts a plan's allocation items.
func replaceAllocationsTx(tx *sql.Tx, planID string, items []AllocationItem) error {
	if _, err := tx.Exec("DELETE FROM plan_allocations WHERE plan_id = ?", planID); err != nil {
		return fmt.Errorf("failed to clear plan allocations: %w", err)
	}

	query := `
		INSERT INTO plan_allocations (id, plan_id, asset_id, ticker, alias, display_name, target_percentage, display_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.Exec(query, id, planID,
			nullableString(item.AssetID), nullableString(item.Ticker),
			nullableString(item.Alias), nullableString(item.DisplayName),
			item.TargetPercentage, i)
		if err != nil {
			return fmt.Errorf("failed to insert plan allocation: %w", err)
		}
	}

	return nil
}

// replaceGroupsTx deletes and re-inserts a plan's groups and their members.
func replaceGroupsTx(tx *sql.Tx, planID string, groups []AllocationGroup) error {
	// Group items cascade on group delete.
	if _, err := tx.Exec("DELETE FROM allocation_groups WHERE plan_id = ?", planID); err != nil {
		return fmt.Errorf("failed to clear allocation groups: %w", err)
	}

	groupQuery := `
		INSERT INTO allocation_groups (id, plan_id, name, target_percentage, display_order)
		VALUES (?, ?, ?, ?, ?)
	`
	itemQuery := `
		INSERT INTO allocation_group_items (id, group_id, asset_id, ticker, alias)
		VALUES (?, ?, ?, ?, ?)
	`

	for i, group := range groups {
		groupID := group.ID
		if groupID == "" {
			groupID = uuid.New().String()
		}
		if _, err := tx.Exec(groupQuery, groupID, planID, group.Name, group.TargetPercentage, i); err != nil {
			return fmt.Errorf("failed to insert allocation group: %w", err)
		}

		for _, item := range group.Items {
			itemID := item.ID
			if itemID == "" {
				itemID = uuid.New().String()
			}
			_, err := tx.Exec(itemQuery, itemID, groupID,
				nullableString(item.AssetID), nullableString(item.Ticker), nullableString(item.Alias))
			if err != nil {
				return fmt.Errorf("failed to insert group item: %w", err)
			}
		}
	}

	return nil
}

// demoteMainPlan clears the is_main flag on the portfolio's current main plan.
func demoteMainPlan(tx *sql.Tx, portfolioID string, now int64) error {
	_, err := tx.Exec(
		"UPDATE rebalance_plans SET is_main = 0, updated_at = ? WHERE portfolio_id = ? AND is_main = 1",
		now, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to demote main plan: %w", err)
	}
	return nil
}

// touchPlan bumps updated_at and verifies the plan exists and is active.
func touchPlan(tx *sql.Tx, planID string) error {
	result, err := tx.Exec(
		"UPDATE rebalance_plans SET updated_at = ? WHERE id = ? AND is_active = 1",
		time.Now().Unix(), planID)
	if err != nil {
		return fmt.Errorf("failed to touch plan: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("plan not found: %s", planID)
	}
	return nil
}

// scanPlan scans one rebalance_plans row.
func scanPlan(rows *sql.Rows) (Plan, error) {
	var plan Plan
	var description, strategyPrompt sql.NullString
	var isMain, isActive int
	var createdAtUnix, updatedAtUnix int64

	if err := rows.Scan(&plan.ID, &plan.PortfolioID, &plan.Name,
		&description, &strategyPrompt, &isMain, &isActive,
		&createdAtUnix, &updatedAtUnix); err != nil {
		return Plan{}, fmt.Errorf("failed to scan plan: %w", err)
	}

	plan.Description = description.String
	plan.StrategyPrompt = strategyPrompt.String
	plan.IsMain = isMain == 1
	plan.IsActive = isActive == 1
	plan.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	plan.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	return plan, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
