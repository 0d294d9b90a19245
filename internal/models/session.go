// ABOUTME: Session model for live workout tracking.
// ABOUTME: A session references its template through a dual-identity Ref.
package models

import "time"

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session represents a single workout performed against a template.
// Workout may carry only a client id while the template is unsynced; the
// server id is backfilled once the template create is confirmed.
type Session struct {
	Ref
	Workout   Ref
	StartedAt time.Time
	EndedAt   *time.Time
	Status    SessionStatus
	Notes     *string
	UpdatedAt time.Time
	DeletedAt *time.Time
	Dirty     bool
}

// NewSession creates an active Session against the given template.
func NewSession(workout Ref) *Session {
	now := time.Now().UTC()
	return &Session{
		Ref:       NewRef(),
		Workout:   workout,
		StartedAt: now,
		Status:    SessionActive,
		UpdatedAt: now,
		Dirty:     true,
	}
}

// WithNotes sets notes on the session.
func (s *Session) WithNotes(notes string) *Session {
	s.Notes = &notes
	return s
}

// Finish marks the session completed at the given time.
func (s *Session) Finish(at time.Time) {
	s.Status = SessionCompleted
	s.EndedAt = &at
	s.UpdatedAt = at
}

// Cancel marks the session cancelled at the given time.
func (s *Session) Cancel(at time.Time) {
	s.Status = SessionCancelled
	s.EndedAt = &at
	s.UpdatedAt = at
}

// Deleted reports whether the session carries a tombstone.
func (s *Session) Deleted() bool {
	return s.DeletedAt != nil
}
