// ABOUTME: SetRecord CRUD operations for SQLite storage.
// ABOUTME: Sets are scanned by session foreign key during reconciliation.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
)

// PutSet inserts or replaces a set record keyed by client id.
func (d *DB) PutSet(sr *models.SetRecord) error {
	query := `
		INSERT INTO set_records (client_id, server_id, session_client_id, session_server_id,
			exercise_name, set_number, reps, weight, completed, completed_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			server_id = excluded.server_id,
			session_client_id = excluded.session_client_id,
			session_server_id = excluded.session_server_id,
			exercise_name = excluded.exercise_name,
			set_number = excluded.set_number,
			reps = excluded.reps,
			weight = excluded.weight,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			dirty = excluded.dirty
	`
	_, err := d.db.Exec(query,
		sr.ClientID.String(),
		nullStr(sr.ServerID),
		sr.Session.ClientID.String(),
		nullStr(sr.Session.ServerID),
		sr.ExerciseName,
		sr.SetNumber,
		sr.Reps,
		sr.Weight,
		boolInt(sr.Completed),
		fmtTimePtr(sr.CompletedAt),
		fmtTime(sr.UpdatedAt),
		fmtTimePtr(sr.DeletedAt),
		boolInt(sr.Dirty),
	)
	if err != nil {
		return fmt.Errorf("put set: %w", err)
	}
	return nil
}

// GetSet retrieves a set record by client ID or ID prefix.
func (d *DB) GetSet(idOrPrefix string) (*models.SetRecord, error) {
	id, err := d.resolveID(TableSets, idOrPrefix)
	if err != nil {
		return nil, err
	}
	row := d.db.QueryRow(`SELECT `+setCols+` FROM set_records WHERE client_id = ?`, id)
	return scanSet(row)
}

// GetSetByServerID retrieves a set record by its backend-assigned id.
func (d *DB) GetSetByServerID(serverID string) (*models.SetRecord, error) {
	row := d.db.QueryRow(`SELECT `+setCols+` FROM set_records WHERE server_id = ?`, serverID)
	return scanSet(row)
}

// ListSetsBySession retrieves all set records under a session, ordered by
// exercise then set number.
func (d *DB) ListSetsBySession(sessionClientID uuid.UUID) ([]*models.SetRecord, error) {
	rows, err := d.db.Query(`SELECT `+setCols+` FROM set_records WHERE session_client_id = ? ORDER BY exercise_name, set_number`,
		sessionClientID.String())
	if err != nil {
		return nil, fmt.Errorf("list sets by session: %w", err)
	}
	defer rows.Close()

	var out []*models.SetRecord
	for rows.Next() {
		sr, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// DeleteSet removes a set record row.
func (d *DB) DeleteSet(clientID uuid.UUID) error {
	_, err := d.db.Exec(`DELETE FROM set_records WHERE client_id = ?`, clientID.String())
	if err != nil {
		return fmt.Errorf("delete set: %w", err)
	}
	return nil
}

const setCols = `client_id, server_id, session_client_id, session_server_id, exercise_name, set_number, reps, weight, completed, completed_at, updated_at, deleted_at, dirty`

func scanSet(row rowScanner) (*models.SetRecord, error) {
	var (
		sr              models.SetRecord
		clientID        string
		serverID        sql.NullString
		sessionClientID string
		sessionServerID sql.NullString
		completed       int
		completedAt     sql.NullString
		updatedAt       string
		deletedAt       sql.NullString
		dirty           int
	)
	err := row.Scan(&clientID, &serverID, &sessionClientID, &sessionServerID,
		&sr.ExerciseName, &sr.SetNumber, &sr.Reps, &sr.Weight,
		&completed, &completedAt, &updatedAt, &deletedAt, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan set: %w", err)
	}

	if sr.ClientID, err = uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("parse set client id: %w", err)
	}
	sr.ServerID = serverID.String
	if sr.Session.ClientID, err = uuid.Parse(sessionClientID); err != nil {
		return nil, fmt.Errorf("parse set session id: %w", err)
	}
	sr.Session.ServerID = sessionServerID.String
	sr.Completed = completed != 0
	if sr.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if sr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sr.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}
	sr.Dirty = dirty != 0
	return &sr, nil
}
