// ABOUTME: SetRecord model for individual sets within a session.
// ABOUTME: (exercise, setNumber) is the natural key used for reconciliation.
package models

import "time"

// SetRecord represents one set of one exercise within a session.
// SetNumber is 1-based and unique within (session, exercise) once settled;
// duplicates are tolerated transiently while push and pull reconcile.
type SetRecord struct {
	Ref
	Session      Ref
	ExerciseName string
	SetNumber    int
	Reps         int
	Weight       *float64
	Completed    bool
	CompletedAt  *time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	Dirty        bool
}

// NewSetRecord creates a SetRecord under the given session.
func NewSetRecord(session Ref, exercise string, setNumber int) *SetRecord {
	return &SetRecord{
		Ref:          NewRef(),
		Session:      session,
		ExerciseName: exercise,
		SetNumber:    setNumber,
		UpdatedAt:    time.Now().UTC(),
		Dirty:        true,
	}
}

// WithReps sets the rep count.
func (sr *SetRecord) WithReps(reps int) *SetRecord {
	sr.Reps = reps
	return sr
}

// WithWeight sets the weight used.
func (sr *SetRecord) WithWeight(weight float64) *SetRecord {
	sr.Weight = &weight
	return sr
}

// Complete marks the set completed at the given time.
func (sr *SetRecord) Complete(at time.Time) {
	sr.Completed = true
	sr.CompletedAt = &at
	sr.UpdatedAt = at
}

// Deleted reports whether the set carries a tombstone.
func (sr *SetRecord) Deleted() bool {
	return sr.DeletedAt != nil
}
