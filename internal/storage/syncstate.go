// ABOUTME: Sync bookkeeping updates across entity tables.
// ABOUTME: Server-id capture, dirty clearing, and foreign-key backfills.
package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// entityTables guards against interpolating arbitrary strings into SQL.
var entityTables = map[string]bool{
	TableTemplates: true,
	TableSessions:  true,
	TableSets:      true,
}

// MarkSynced records the backend-assigned id on a local record and clears
// its dirty flag. The server id of a synced record never changes, so this
// is only valid on a record without one.
func (d *DB) MarkSynced(table string, clientID uuid.UUID, serverID string) error {
	if !entityTables[table] {
		return fmt.Errorf("unknown table: %q", table)
	}
	_, err := d.db.Exec(`UPDATE `+table+` SET server_id = ?, dirty = 0 WHERE client_id = ?`,
		serverID, clientID.String())
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// ClearDirty marks a local record as confirmed to match the backend.
func (d *DB) ClearDirty(table string, clientID uuid.UUID) error {
	if !entityTables[table] {
		return fmt.Errorf("unknown table: %q", table)
	}
	_, err := d.db.Exec(`UPDATE `+table+` SET dirty = 0 WHERE client_id = ?`, clientID.String())
	if err != nil {
		return fmt.Errorf("clear dirty: %w", err)
	}
	return nil
}

// BackfillSessionWorkout writes a newly-assigned template server id into
// every session that referenced the template by client id only.
func (d *DB) BackfillSessionWorkout(workoutClientID uuid.UUID, workoutServerID string) error {
	_, err := d.db.Exec(`UPDATE sessions SET workout_server_id = ? WHERE workout_client_id = ?`,
		workoutServerID, workoutClientID.String())
	if err != nil {
		return fmt.Errorf("backfill session workout id: %w", err)
	}
	return nil
}

// BackfillSetSession writes a newly-assigned session server id into every
// set record that referenced the session by client id only.
func (d *DB) BackfillSetSession(sessionClientID uuid.UUID, sessionServerID string) error {
	_, err := d.db.Exec(`UPDATE set_records SET session_server_id = ? WHERE session_client_id = ?`,
		sessionServerID, sessionClientID.String())
	if err != nil {
		return fmt.Errorf("backfill set session id: %w", err)
	}
	return nil
}
