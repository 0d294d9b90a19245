// ABOUTME: Outbox payload builders for the UI/business layer.
// ABOUTME: Converts local models into the remote-call argument payloads.
package sync

import (
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
)

// TemplatePayloadFor builds the remote-call arguments for a template
// mutation.
func TemplatePayloadFor(t *models.Template) remote.TemplatePayload {
	exercises := make([]remote.ExercisePayload, 0, len(t.Exercises))
	for _, ex := range t.Exercises {
		exercises = append(exercises, remote.ExercisePayload{
			Name:         ex.Name,
			TargetSets:   ex.TargetSets,
			TargetReps:   ex.TargetReps,
			TargetWeight: ex.TargetWeight,
			RestSeconds:  ex.RestSeconds,
		})
	}
	return remote.TemplatePayload{
		Name:        t.Name,
		Description: t.Description,
		Exercises:   exercises,
	}
}

// SessionPayloadFor builds the remote-call arguments for a session
// mutation. WorkoutID is carried when known; the push synchronizer resolves
// it at dispatch otherwise.
func SessionPayloadFor(s *models.Session) remote.SessionPayload {
	var endedAt *string
	if s.EndedAt != nil {
		v := s.EndedAt.UTC().Format(time.RFC3339Nano)
		endedAt = &v
	}
	return remote.SessionPayload{
		WorkoutID: s.Workout.ServerID,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339Nano),
		EndedAt:   endedAt,
		Status:    string(s.Status),
		Notes:     s.Notes,
	}
}

// SetPayloadFor builds the remote-call arguments for a set mutation.
func SetPayloadFor(sr *models.SetRecord) remote.SetPayload {
	var completedAt *string
	if sr.CompletedAt != nil {
		v := sr.CompletedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &v
	}
	return remote.SetPayload{
		SessionID:    sr.Session.ServerID,
		ExerciseName: sr.ExerciseName,
		SetNumber:    sr.SetNumber,
		Reps:         sr.Reps,
		Weight:       sr.Weight,
		Completed:    sr.Completed,
		CompletedAt:  completedAt,
	}
}
