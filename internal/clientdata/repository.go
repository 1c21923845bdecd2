// Package clientdata provides persistent caching for external API client
// responses. Payloads are stored as msgpack blobs with expiration
// timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache TTLs per data source. Quotes go stale fast; exchange rates drift
// slowly enough that an hour is fine.
const (
	TTLQuote        = 10 * time.Minute
	TTLExchangeRate = 1 * time.Hour
)

// Known cache sources. Sources outside this list are rejected so a typo in
// a caller cannot silently create an orphaned namespace.
var validSources = map[string]bool{
	"quotes":       true,
	"exchangerate": true,
}

// Repository provides cache operations over the client_data table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func validateSource(source string) error {
	if !validSources[source] {
		return fmt.Errorf("invalid cache source: %s", source)
	}
	return nil
}

// Store saves a payload with expiration = now + ttl (upsert).
func (r *Repository) Store(source, key string, value interface{}, ttl time.Duration) error {
	if err := validateSource(source); err != nil {
		return err
	}

	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	now := time.Now()
	query := `
		INSERT OR REPLACE INTO client_data (source, key, payload, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, source, key, payload, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache payload for %s/%s: %w", source, key, err)
	}

	return nil
}

// GetIfFresh unmarshals the payload into dest only if it has not expired.
// Returns false if the key is missing or stale. Use Get to retrieve stale
// data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(source, key string, dest interface{}) (bool, error) {
	if err := validateSource(source); err != nil {
		return false, err
	}

	var payload []byte
	query := "SELECT payload FROM client_data WHERE source = ? AND key = ? AND expires_at > ?"
	err := r.db.QueryRow(query, source, key, time.Now().Unix()).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cache for %s/%s: %w", source, key, err)
	}

	if err := msgpack.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache payload for %s/%s: %w", source, key, err)
	}

	return true, nil
}

// Get unmarshals the payload into dest regardless of expiration.
// Stale data is better than no data when the upstream API is down.
func (r *Repository) Get(source, key string, dest interface{}) (bool, error) {
	if err := validateSource(source); err != nil {
		return false, err
	}

	var payload []byte
	query := "SELECT payload FROM client_data WHERE source = ? AND key = ?"
	err := r.db.QueryRow(query, source, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cache for %s/%s: %w", source, key, err)
	}

	if err := msgpack.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache payload for %s/%s: %w", source, key, err)
	}

	return true, nil
}

// Cleanup deletes entries expired for longer than the grace period.
// The grace period keeps recently-expired entries around so they can still
// serve as stale fallbacks.
func (r *Repository) Cleanup(grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace).Unix()

	result, err := r.db.Exec("DELETE FROM client_data WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up client data: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}
