// ABOUTME: Template CRUD operations for SQLite storage.
// ABOUTME: Exercise specs are stored as a JSON column.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
)

// PutTemplate inserts or replaces a template row keyed by client id.
func (d *DB) PutTemplate(t *models.Template) error {
	exercises, err := json.Marshal(t.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	query := `
		INSERT INTO templates (client_id, server_id, name, description, exercises, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			server_id = excluded.server_id,
			name = excluded.name,
			description = excluded.description,
			exercises = excluded.exercises,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			dirty = excluded.dirty
	`
	_, err = d.db.Exec(query,
		t.ClientID.String(),
		nullStr(t.ServerID),
		t.Name,
		t.Description,
		string(exercises),
		fmtTime(t.UpdatedAt),
		fmtTimePtr(t.DeletedAt),
		boolInt(t.Dirty),
	)
	if err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by client ID or ID prefix.
func (d *DB) GetTemplate(idOrPrefix string) (*models.Template, error) {
	id, err := d.resolveID(TableTemplates, idOrPrefix)
	if err != nil {
		return nil, err
	}
	row := d.db.QueryRow(`SELECT `+templateCols+` FROM templates WHERE client_id = ?`, id)
	return scanTemplate(row)
}

// GetTemplateByServerID retrieves a template by its backend-assigned id.
func (d *DB) GetTemplateByServerID(serverID string) (*models.Template, error) {
	row := d.db.QueryRow(`SELECT `+templateCols+` FROM templates WHERE server_id = ?`, serverID)
	return scanTemplate(row)
}

// ListTemplates retrieves templates, most recently updated first.
func (d *DB) ListTemplates(limit int) ([]*models.Template, error) {
	query := `SELECT ` + templateCols + ` FROM templates ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template row. Used when a pull reflects a
// tombstone that the external layer decides to purge.
func (d *DB) DeleteTemplate(clientID uuid.UUID) error {
	_, err := d.db.Exec(`DELETE FROM templates WHERE client_id = ?`, clientID.String())
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

const templateCols = `client_id, server_id, name, description, exercises, updated_at, deleted_at, dirty`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		t         models.Template
		clientID  string
		serverID  sql.NullString
		exercises string
		updatedAt string
		deletedAt sql.NullString
		dirty     int
	)
	err := row.Scan(&clientID, &serverID, &t.Name, &t.Description, &exercises, &updatedAt, &deletedAt, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	if t.ClientID, err = uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("parse template client id: %w", err)
	}
	t.ServerID = serverID.String
	if err := json.Unmarshal([]byte(exercises), &t.Exercises); err != nil {
		return nil, fmt.Errorf("unmarshal exercises: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}
	t.Dirty = dirty != 0
	return &t, nil
}

// resolveID finds the full client id from a prefix within the given table.
func (d *DB) resolveID(table, idOrPrefix string) (string, error) {
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}

	rows, err := d.db.Query(`SELECT client_id FROM `+table+` WHERE client_id LIKE ? || '%'`, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve id: %w", err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous prefix %q matches %d records", idOrPrefix, len(matches))
	}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
