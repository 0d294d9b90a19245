// ABOUTME: Mutation outbox and dead-letter queue for pending local changes.
// ABOUTME: Entries are strictly ordered by arrival and drained FIFO.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of mutation recorded in an outbox entry.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpComplete Op = "complete" // SetRecord only
)

// OutboxEntry is one pending local mutation awaiting replay against the
// backend. Payload holds the remote-call arguments as JSON.
type OutboxEntry struct {
	ID         int64
	Table      string
	Op         Op
	ClientID   uuid.UUID
	Payload    json.RawMessage
	EnqueuedAt time.Time
	Attempts   int
}

// NewOutboxEntry builds an entry for the given mutation, marshaling payload
// to JSON.
func NewOutboxEntry(table string, op Op, clientID uuid.UUID, payload any) (*OutboxEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return &OutboxEntry{
		Table:      table,
		Op:         op,
		ClientID:   clientID,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// EnqueueOutbox appends an entry to the outbox.
func (d *DB) EnqueueOutbox(e *OutboxEntry) error {
	res, err := d.db.Exec(`
		INSERT INTO outbox (tbl, op, client_id, payload, enqueued_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Table, string(e.Op), e.ClientID.String(), string(e.Payload), fmtTime(e.EnqueuedAt), e.Attempts,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// PeekOutbox returns the oldest entry without removing it. Returns
// ErrNotFound when the outbox is empty.
func (d *DB) PeekOutbox() (*OutboxEntry, error) {
	row := d.db.QueryRow(`
		SELECT id, tbl, op, client_id, payload, enqueued_at, attempts
		FROM outbox ORDER BY enqueued_at, id LIMIT 1`)
	return scanOutbox(row)
}

// DeleteOutbox removes an entry by id.
func (d *DB) DeleteOutbox(id int64) error {
	if _, err := d.db.Exec(`DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete outbox entry: %w", err)
	}
	return nil
}

// BumpOutboxAttempts increments the attempt counter on an entry.
func (d *DB) BumpOutboxAttempts(id int64) error {
	if _, err := d.db.Exec(`UPDATE outbox SET attempts = attempts + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("bump outbox attempts: %w", err)
	}
	return nil
}

// DeleteOutboxFor removes all entries for a record with the given op. Used
// when reconciliation supersedes a queued create.
func (d *DB) DeleteOutboxFor(table string, clientID uuid.UUID, op Op) error {
	_, err := d.db.Exec(`DELETE FROM outbox WHERE tbl = ? AND client_id = ? AND op = ?`,
		table, clientID.String(), string(op))
	if err != nil {
		return fmt.Errorf("delete outbox entries: %w", err)
	}
	return nil
}

// HasOutboxFor reports whether an entry for the record and op is queued.
func (d *DB) HasOutboxFor(table string, clientID uuid.UUID, op Op) (bool, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM outbox WHERE tbl = ? AND client_id = ? AND op = ?`,
		table, clientID.String(), string(op)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count outbox entries: %w", err)
	}
	return n > 0, nil
}

// CountOutbox returns the number of pending entries.
func (d *DB) CountOutbox() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// DeadLetter records an entry dropped from the outbox so a manual resync
// stays possible. The local record remains dirty.
func (d *DB) DeadLetter(e *OutboxEntry, reason string) error {
	_, err := d.db.Exec(`
		INSERT INTO dead_letters (tbl, op, client_id, payload, enqueued_at, attempts, reason, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Table, string(e.Op), e.ClientID.String(), string(e.Payload),
		fmtTime(e.EnqueuedAt), e.Attempts, reason, fmtTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}
	return nil
}

// CountDeadLetters returns the number of dropped entries.
func (d *DB) CountDeadLetters() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

func scanOutbox(row rowScanner) (*OutboxEntry, error) {
	var (
		e          OutboxEntry
		op         string
		clientID   string
		payload    string
		enqueuedAt string
	)
	err := row.Scan(&e.ID, &e.Table, &op, &clientID, &payload, &enqueuedAt, &e.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}

	e.Op = Op(op)
	if e.ClientID, err = uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("parse outbox client id: %w", err)
	}
	e.Payload = json.RawMessage(payload)
	if e.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
