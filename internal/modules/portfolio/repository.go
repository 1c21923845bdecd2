package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles asset and category database operations.
// Database: portfolio.db (assets, asset_categories tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

const assetColumns = `id, portfolio_id, category_id, name, ticker, asset_type,
	quantity, average_price, currency, current_value, purchase_exchange_rate,
	notes, is_active, created_at, updated_at`

// GetAssets returns all active assets for a portfolio in creation order.
func (r *Repository) GetAssets(portfolioID string) ([]Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM assets
		WHERE portfolio_id = ? AND is_active = 1
		ORDER BY created_at, id
	`, assetColumns)

	rows, err := r.db.Query(query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// GetAsset returns a single active asset, or (nil, nil) if not found.
func (r *Repository) GetAsset(assetID string) (*Asset, error) {
	query := fmt.Sprintf("SELECT %s FROM assets WHERE id = ? AND is_active = 1", assetColumns)

	rows, err := r.db.Query(query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading asset: %w", err)
		}
		return nil, nil
	}

	asset, err := scanAsset(rows)
	if err != nil {
		return nil, err
	}

	return &asset, nil
}

// CreateAsset inserts a new asset.
func (r *Repository) CreateAsset(asset *Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.PortfolioID == "" {
		asset.PortfolioID = "default"
	}
	if asset.AssetType == "" {
		asset.AssetType = "stock"
	}
	if asset.Currency == "" {
		asset.Currency = "KRW"
	}
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	asset.IsActive = true

	query := `
		INSERT INTO assets (id, portfolio_id, category_id, name, ticker, asset_type,
			quantity, average_price, currency, current_value, purchase_exchange_rate,
			notes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err := r.db.Exec(query,
		asset.ID, asset.PortfolioID, nullableString(asset.CategoryID),
		asset.Name, nullableString(asset.Ticker), asset.AssetType,
		asset.Quantity, asset.AveragePrice, asset.Currency,
		asset.CurrentValue, asset.PurchaseExchangeRate,
		nullableString(asset.Notes), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	r.log.Debug().
		Str("asset_id", asset.ID).
		Str("name", asset.Name).
		Str("ticker", asset.Ticker).
		Msg("Asset created")

	return nil
}

// UpdateAsset applies a partial update to an asset.
func (r *Repository) UpdateAsset(assetID string, update AssetUpdate) error {
	asset, err := r.GetAsset(assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("asset not found: %s", assetID)
	}

	if update.CategoryID != nil {
		asset.CategoryID = *update.CategoryID
	}
	if update.Name != nil {
		asset.Name = *update.Name
	}
	if update.Ticker != nil {
		asset.Ticker = *update.Ticker
	}
	if update.AssetType != nil {
		asset.AssetType = *update.AssetType
	}
	if update.Quantity != nil {
		asset.Quantity = *update.Quantity
	}
	if update.AveragePrice != nil {
		asset.AveragePrice = *update.AveragePrice
	}
	if update.Currency != nil {
		asset.Currency = *update.Currency
	}
	if update.CurrentValue != nil {
		asset.CurrentValue = update.CurrentValue
	}
	if update.PurchaseExchangeRate != nil {
		asset.PurchaseExchangeRate = update.PurchaseExchangeRate
	}
	if update.Notes != nil {
		asset.Notes = *update.Notes
	}

	query := `
		UPDATE assets
		SET category_id = ?, name = ?, ticker = ?, asset_type = ?,
			quantity = ?, average_price = ?, currency = ?, current_value = ?,
			purchase_exchange_rate = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.Exec(query,
		nullableString(asset.CategoryID), asset.Name, nullableString(asset.Ticker),
		asset.AssetType, asset.Quantity, asset.AveragePrice, asset.Currency,
		asset.CurrentValue, asset.PurchaseExchangeRate, nullableString(asset.Notes),
		time.Now().Unix(), assetID)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}

	r.log.Debug().Str("asset_id", assetID).Msg("Asset updated")
	return nil
}

// SoftDeleteAsset deactivates an asset.
func (r *Repository) SoftDeleteAsset(assetID string) error {
	result, err := r.db.Exec(
		"UPDATE assets SET is_active = 0, updated_at = ? WHERE id = ?",
		time.Now().Unix(), assetID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("asset not found: %s", assetID)
	}

	r.log.Debug().Str("asset_id", assetID).Msg("Asset deleted")
	return nil
}

// GetCategories returns all categories in display order.
func (r *Repository) GetCategories() ([]Category, error) {
	query := `
		SELECT id, name, color, icon, display_order
		FROM asset_categories
		ORDER BY display_order, name
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// UpsertCategory inserts or updates a category by name.
func (r *Repository) UpsertCategory(category *Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.Color == "" {
		category.Color = "#888888"
	}

	query := `
		INSERT INTO asset_categories (id, name, color, icon, display_order)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			color = excluded.color,
			icon = excluded.icon,
			display_order = excluded.display_order
	`
	_, err := r.db.Exec(query, category.ID, category.Name, category.Color,
		category.Icon, category.DisplayOrder)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}

	r.log.Debug().Str("name", category.Name).Msg("Category upserted")
	return nil
}

// DeleteCategory removes a category. Assets keep working, their
// category_id is nulled by the schema's ON DELETE SET NULL.
func (r *Repository) DeleteCategory(categoryID string) error {
	result, err := r.db.Exec("DELETE FROM asset_categories WHERE id = ?", categoryID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("category not found: %s", categoryID)
	}

	return nil
}

// scanAsset scans one assets row.
func scanAsset(rows *sql.Rows) (Asset, error) {
	var asset Asset
	var categoryID, ticker, notes sql.NullString
	var currentValue, purchaseRate sql.NullFloat64
	var isActive int
	var createdAtUnix, updatedAtUnix int64

	if err := rows.Scan(&asset.ID, &asset.PortfolioID, &categoryID, &asset.Name,
		&ticker, &asset.AssetType, &asset.Quantity, &asset.AveragePrice,
		&asset.Currency, &currentValue, &purchaseRate, &notes, &isActive,
		&createdAtUnix, &updatedAtUnix); err != nil {
		return Asset{}, fmt.Errorf("failed to scan asset: %w", err)
	}

	asset.CategoryID = categoryID.String
	asset.Ticker = ticker.String
	asset.Notes = notes.String
	if currentValue.Valid {
		asset.CurrentValue = &currentValue.Float64
	}
	if purchaseRate.Valid {
		asset.PurchaseExchangeRate = &purchaseRate.Float64
	}
	asset.IsActive = isActive == 1
	asset.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	asset.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	return asset, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
