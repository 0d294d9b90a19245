// ABOUTME: Remote backend RPC surface consumed by the sync engine.
// ABOUTME: Defines the per-entity client interface, payloads, and errors.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps transport-level failures: the backend could not be
// reached or answered with a server error. These are retryable.
var ErrUnavailable = errors.New("backend unavailable")

// RejectedError is an application-level rejection (validation, auth). These
// are permanent: retrying the same payload will not succeed.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Reason)
}

// Client is the backend RPC surface, one set of operations per entity kind.
// Create calls return the backend-assigned id. All "since" queries return
// rows updated strictly after the given watermark; a zero time fetches
// everything.
type Client interface {
	// Ping probes connectivity before a sync cycle touches the queue.
	Ping(ctx context.Context) error

	CreateTemplate(ctx context.Context, p TemplatePayload) (string, error)
	UpdateTemplate(ctx context.Context, serverID string, p TemplatePayload) error
	DeleteTemplate(ctx context.Context, serverID string) error
	ListTemplatesSince(ctx context.Context, since time.Time) ([]TemplateRow, error)

	// CreateSession also provisions the template's default set rows on the
	// backend as a side effect.
	CreateSession(ctx context.Context, p SessionPayload) (string, error)
	UpdateSession(ctx context.Context, serverID string, p SessionPayload) error
	DeleteSession(ctx context.Context, serverID string) error
	ListSessionsSince(ctx context.Context, since time.Time) ([]SessionRow, error)

	CreateSet(ctx context.Context, p SetPayload) (string, error)
	UpdateSet(ctx context.Context, serverID string, p SetPayload) error
	DeleteSet(ctx context.Context, serverID string) error
	CompleteSet(ctx context.Context, serverID string, completedAt time.Time) error
	ListSetsSince(ctx context.Context, sessionServerID string, since time.Time) ([]SetRow, error)
}

// ExercisePayload mirrors models.ExerciseSpec on the wire.
type ExercisePayload struct {
	Name         string   `json:"name"`
	TargetSets   int      `json:"target_sets"`
	TargetReps   *int     `json:"target_reps,omitempty"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	RestSeconds  *int     `json:"rest_seconds,omitempty"`
}

// TemplatePayload is the create/update body for a workout template.
type TemplatePayload struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Exercises   []ExercisePayload `json:"exercises"`
}

// SessionPayload is the create/update body for a session. WorkoutID is the
// template's backend id; the push synchronizer resolves it just before
// dispatch, so queued payloads may carry it empty.
type SessionPayload struct {
	WorkoutID string  `json:"workout_id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes,omitempty"`
}

// SetPayload is the create/update body for a set record. SessionID is the
// session's backend id, resolved at dispatch like SessionPayload.WorkoutID.
type SetPayload struct {
	SessionID    string   `json:"session_id"`
	ExerciseName string   `json:"exercise_name"`
	SetNumber    int      `json:"set_number"`
	Reps         int      `json:"reps"`
	Weight       *float64 `json:"weight,omitempty"`
	Completed    bool     `json:"completed"`
	CompletedAt  *string  `json:"completed_at,omitempty"`
}

// TemplateRow is a backend template as returned by list-since queries.
type TemplateRow struct {
	ID          string
	Name        string
	Description string
	Exercises   []ExercisePayload
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// SessionRow is a backend session as returned by list-since queries.
type SessionRow struct {
	ID        string
	WorkoutID string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// SetRow is a backend set record as returned by list-since queries.
type SetRow struct {
	ID           string
	SessionID    string
	ExerciseName string
	SetNumber    int
	Reps         int
	Weight       *float64
	Completed    bool
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Stamp returns the row's merge timestamp: updatedAt, falling back to the
// creation timestamp when the backend never updated the row.
func (r TemplateRow) Stamp() time.Time { return stamp(r.UpdatedAt, r.CreatedAt) }

// Stamp returns the row's merge timestamp.
func (r SessionRow) Stamp() time.Time { return stamp(r.UpdatedAt, r.CreatedAt) }

// Stamp returns the row's merge timestamp.
func (r SetRow) Stamp() time.Time { return stamp(r.UpdatedAt, r.CreatedAt) }

func stamp(updated, created time.Time) time.Time {
	if updated.IsZero() {
		return created
	}
	return updated
}
