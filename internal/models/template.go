// ABOUTME: Template model for workout plans.
// ABOUTME: A template holds an ordered list of exercise specs.
package models

import "time"

// Template represents a reusable workout plan.
type Template struct {
	Ref
	Name        string
	Description string
	Exercises   []ExerciseSpec
	UpdatedAt   time.Time
	DeletedAt   *time.Time
	Dirty       bool
}

// ExerciseSpec describes one exercise within a template.
type ExerciseSpec struct {
	Name         string   `json:"name"`
	TargetSets   int      `json:"target_sets"`
	TargetReps   *int     `json:"target_reps,omitempty"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	RestSeconds  *int     `json:"rest_seconds,omitempty"`
}

// NewTemplate creates a new Template with a generated client id.
// New local records start dirty; only a confirmed push or a pull clears it.
func NewTemplate(name string) *Template {
	return &Template{
		Ref:       NewRef(),
		Name:      name,
		UpdatedAt: time.Now().UTC(),
		Dirty:     true,
	}
}

// WithDescription sets the template description.
func (t *Template) WithDescription(desc string) *Template {
	t.Description = desc
	return t
}

// WithExercise appends an exercise spec.
func (t *Template) WithExercise(spec ExerciseSpec) *Template {
	t.Exercises = append(t.Exercises, spec)
	return t
}

// Deleted reports whether the template carries a tombstone.
func (t *Template) Deleted() bool {
	return t.DeletedAt != nil
}
