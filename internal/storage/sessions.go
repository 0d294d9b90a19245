// ABOUTME: Session CRUD operations for SQLite storage.
// ABOUTME: Sessions keep both template identifiers for offline references.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
)

// PutSession inserts or replaces a session row keyed by client id.
func (d *DB) PutSession(s *models.Session) error {
	query := `
		INSERT INTO sessions (client_id, server_id, workout_client_id, workout_server_id,
			started_at, ended_at, status, notes, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			server_id = excluded.server_id,
			workout_client_id = excluded.workout_client_id,
			workout_server_id = excluded.workout_server_id,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			dirty = excluded.dirty
	`
	_, err := d.db.Exec(query,
		s.ClientID.String(),
		nullStr(s.ServerID),
		s.Workout.ClientID.String(),
		nullStr(s.Workout.ServerID),
		fmtTime(s.StartedAt),
		fmtTimePtr(s.EndedAt),
		string(s.Status),
		s.Notes,
		fmtTime(s.UpdatedAt),
		fmtTimePtr(s.DeletedAt),
		boolInt(s.Dirty),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by client ID or ID prefix.
func (d *DB) GetSession(idOrPrefix string) (*models.Session, error) {
	id, err := d.resolveID(TableSessions, idOrPrefix)
	if err != nil {
		return nil, err
	}
	row := d.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE client_id = ?`, id)
	return scanSession(row)
}

// GetSessionByServerID retrieves a session by its backend-assigned id.
func (d *DB) GetSessionByServerID(serverID string) (*models.Session, error) {
	row := d.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE server_id = ?`, serverID)
	return scanSession(row)
}

// ListSessions retrieves sessions, most recently started first.
func (d *DB) ListSessions(limit int) ([]*models.Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListSessionsByTemplate retrieves all sessions referencing a template.
func (d *DB) ListSessionsByTemplate(workoutClientID uuid.UUID) ([]*models.Session, error) {
	rows, err := d.db.Query(`SELECT `+sessionCols+` FROM sessions WHERE workout_client_id = ? ORDER BY started_at DESC`,
		workoutClientID.String())
	if err != nil {
		return nil, fmt.Errorf("list sessions by template: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// DeleteSession removes a session row.
func (d *DB) DeleteSession(clientID uuid.UUID) error {
	_, err := d.db.Exec(`DELETE FROM sessions WHERE client_id = ?`, clientID.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

const sessionCols = `client_id, server_id, workout_client_id, workout_server_id, started_at, ended_at, status, notes, updated_at, deleted_at, dirty`

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s               models.Session
		clientID        string
		serverID        sql.NullString
		workoutClientID string
		workoutServerID sql.NullString
		startedAt       string
		endedAt         sql.NullString
		status          string
		updatedAt       string
		deletedAt       sql.NullString
		dirty           int
	)
	err := row.Scan(&clientID, &serverID, &workoutClientID, &workoutServerID,
		&startedAt, &endedAt, &status, &s.Notes, &updatedAt, &deletedAt, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if s.ClientID, err = uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("parse session client id: %w", err)
	}
	s.ServerID = serverID.String
	if s.Workout.ClientID, err = uuid.Parse(workoutClientID); err != nil {
		return nil, fmt.Errorf("parse workout client id: %w", err)
	}
	s.Workout.ServerID = workoutServerID.String
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if s.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}
	s.Dirty = dirty != 0
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*models.Session, error) {
	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
