package store

import (
	"fmt"
	"time"

	"github.com/soyeahso/supportwire/internal/domain"
)

// HistoryCache persists the widget's bounded local history, keyed by
// identity. Only the most recent slice of the in-memory log is written;
// the cap is enforced by the caller (the message log owns the policy).
type HistoryCache struct {
	db *DB
}

// NewHistoryCache creates a history cache using the given database.
func NewHistoryCache(db *DB) *HistoryCache {
	return &HistoryCache{db: db}
}

// Save replaces the persisted slice for the given cache key.
func (c *HistoryCache) Save(key string, entries []domain.Message) error {
	tx, err := c.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin history save: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM history_cache WHERE cache_key = ?`, key); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing history slice: %w", err)
	}

	for i, m := range entries {
		_, err := tx.Exec(
			`INSERT INTO history_cache (cache_key, message_id, text, sender, created_at, origin, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, m.ID, m.Text, string(m.Sender), m.CreatedAt.Format(time.RFC3339Nano), string(m.Origin), i,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting history entry: %w", err)
		}
	}

	return tx.Commit()
}

// Load returns the persisted slice for the given cache key in position order.
func (c *HistoryCache) Load(key string) ([]domain.Message, error) {
	rows, err := c.db.sql.Query(
		`SELECT message_id, text, sender, created_at, origin
		 FROM history_cache WHERE cache_key = ? ORDER BY position`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var sender, origin, createdAt string
		if err := rows.Scan(&m.ID, &m.Text, &sender, &createdAt, &origin); err != nil {
			continue
		}
		m.Sender = domain.Sender(sender)
		m.Origin = domain.Origin(origin)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Clear removes all persisted history for the given cache key. Called on
// identity replacement so no history leaks across identities.
func (c *HistoryCache) Clear(key string) error {
	_, err := c.db.sql.Exec(`DELETE FROM history_cache WHERE cache_key = ?`, key)
	return err
}
