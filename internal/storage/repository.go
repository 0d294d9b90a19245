// ABOUTME: Repository interface for the local workout store.
// ABOUTME: Defines contract for entity CRUD, outbox, and sync metadata.
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
)

// Table names for the three synced entity kinds.
const (
	TableTemplates = "templates"
	TableSessions  = "sessions"
	TableSets      = "set_records"
)

// Repository defines the storage interface for the local workout store.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Template operations
	PutTemplate(t *models.Template) error
	GetTemplate(idOrPrefix string) (*models.Template, error)
	GetTemplateByServerID(serverID string) (*models.Template, error)
	ListTemplates(limit int) ([]*models.Template, error)
	DeleteTemplate(clientID uuid.UUID) error

	// Session operations
	PutSession(s *models.Session) error
	GetSession(idOrPrefix string) (*models.Session, error)
	GetSessionByServerID(serverID string) (*models.Session, error)
	ListSessions(limit int) ([]*models.Session, error)
	ListSessionsByTemplate(workoutClientID uuid.UUID) ([]*models.Session, error)
	DeleteSession(clientID uuid.UUID) error

	// SetRecord operations
	PutSet(sr *models.SetRecord) error
	GetSet(idOrPrefix string) (*models.SetRecord, error)
	GetSetByServerID(serverID string) (*models.SetRecord, error)
	ListSetsBySession(sessionClientID uuid.UUID) ([]*models.SetRecord, error)
	DeleteSet(clientID uuid.UUID) error

	// Sync bookkeeping across entity tables
	MarkSynced(table string, clientID uuid.UUID, serverID string) error
	ClearDirty(table string, clientID uuid.UUID) error
	BackfillSessionWorkout(workoutClientID uuid.UUID, workoutServerID string) error
	BackfillSetSession(sessionClientID uuid.UUID, sessionServerID string) error

	// Outbox operations (FIFO by arrival)
	EnqueueOutbox(e *OutboxEntry) error
	PeekOutbox() (*OutboxEntry, error)
	DeleteOutbox(id int64) error
	BumpOutboxAttempts(id int64) error
	DeleteOutboxFor(table string, clientID uuid.UUID, op Op) error
	HasOutboxFor(table string, clientID uuid.UUID, op Op) (bool, error)
	CountOutbox() (int, error)

	// Dead letters (entries dropped from the outbox)
	DeadLetter(e *OutboxEntry, reason string) error
	CountDeadLetters() (int, error)

	// Watermarks per entity kind
	Watermark(kind string) (time.Time, error)
	SetWatermark(kind string, t time.Time) error

	// WithTx runs fn in a single transaction. Meant for callers pairing an
	// entity write with an outbox append.
	WithTx(fn func(tx Repository) error) error

	// Lifecycle
	Close() error
}
