// ABOUTME: Sync metadata table: per-entity-kind pull watermarks.
// ABOUTME: The set-record watermark is one global checkpoint, not per-session.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Watermark returns the last-synced checkpoint for an entity kind, or the
// zero time if no pull has completed yet.
func (d *DB) Watermark(kind string) (time.Time, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, watermarkKey(kind)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get watermark: %w", err)
	}
	return parseTime(value)
}

// SetWatermark stores the checkpoint for an entity kind.
func (d *DB) SetWatermark(kind string, t time.Time) error {
	_, err := d.db.Exec(`
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		watermarkKey(kind), fmtTime(t),
	)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

func watermarkKey(kind string) string {
	return "watermark:" + kind
}
