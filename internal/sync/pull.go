// ABOUTME: Pull synchronizer: merges backend changes since per-kind watermarks.
// ABOUTME: Matches rows by server id, falling back to the natural key for sets.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// pullTemplates fetches templates updated after the stored watermark and
// merges them into the local store.
func (e *Engine) pullTemplates(ctx context.Context) error {
	since, err := e.store.Watermark(storage.TableTemplates)
	if err != nil {
		return err
	}

	rows, err := e.client.ListTemplatesSince(ctx, since)
	if err != nil {
		return err
	}

	var high time.Time
	for _, row := range rows {
		if err := e.mergeTemplate(row); err != nil {
			return err
		}
		if s := row.Stamp(); s.After(high) {
			high = s
		}
	}

	if len(rows) == 0 {
		return nil
	}
	return e.store.SetWatermark(storage.TableTemplates, high)
}

// pullSessions fetches sessions updated after the stored watermark. Each
// pulled session triggers a nested set pull for that session. The set
// watermark is a single global checkpoint advanced to the maximum stamp
// seen across all sessions in the cycle; a session pulled early in the
// cycle is not revisited for sets arriving before the cycle ends. That is
// a deliberate simplification of the watermark scheme, not a bug.
func (e *Engine) pullSessions(ctx context.Context) error {
	since, err := e.store.Watermark(storage.TableSessions)
	if err != nil {
		return err
	}
	setsSince, err := e.store.Watermark(storage.TableSets)
	if err != nil {
		return err
	}

	rows, err := e.client.ListSessionsSince(ctx, since)
	if err != nil {
		return err
	}

	var high, setsHigh time.Time
	for _, row := range rows {
		sessionClientID, err := e.mergeSession(row)
		if err != nil {
			return err
		}
		if s := row.Stamp(); s.After(high) {
			high = s
		}

		setHigh, err := e.pullSessionSets(ctx, row.ID, sessionClientID, setsSince)
		if err != nil {
			return err
		}
		if setHigh.After(setsHigh) {
			setsHigh = setHigh
		}
	}

	if len(rows) == 0 {
		return nil
	}
	if err := e.store.SetWatermark(storage.TableSessions, high); err != nil {
		return err
	}
	if !setsHigh.IsZero() {
		if err := e.store.SetWatermark(storage.TableSets, setsHigh); err != nil {
			return err
		}
	}
	return nil
}

// mergeTemplate applies one backend template row: overwrite the existing
// local row matched by server id, or insert a new one with a fresh client
// id. Pulled data is confirmed by definition, so dirty is forced false.
func (e *Engine) mergeTemplate(row remote.TemplateRow) error {
	local, err := e.store.GetTemplateByServerID(row.ID)
	if errors.Is(err, storage.ErrNotFound) {
		local = &models.Template{Ref: models.NewRef()}
	} else if err != nil {
		return err
	}

	local.ServerID = row.ID
	local.Name = row.Name
	local.Description = row.Description
	local.Exercises = exercisesFromPayload(row.Exercises)
	local.UpdatedAt = row.Stamp()
	local.DeletedAt = row.DeletedAt
	local.Dirty = false
	return e.store.PutTemplate(local)
}

// mergeSession applies one backend session row and returns the local
// client id it landed on.
func (e *Engine) mergeSession(row remote.SessionRow) (uuid.UUID, error) {
	local, err := e.store.GetSessionByServerID(row.ID)
	if errors.Is(err, storage.ErrNotFound) {
		local = &models.Session{Ref: models.NewRef()}
		// Resolve the template reference locally when we already have it;
		// templates are pulled first in the cycle so this normally hits.
		if tpl, terr := e.store.GetTemplateByServerID(row.WorkoutID); terr == nil {
			local.Workout = tpl.Ref
		} else if errors.Is(terr, storage.ErrNotFound) {
			local.Workout = models.Ref{ServerID: row.WorkoutID}
		} else {
			return uuid.Nil, terr
		}
	} else if err != nil {
		return uuid.Nil, err
	}

	local.Workout.ServerID = row.WorkoutID
	local.StartedAt = row.StartedAt
	local.EndedAt = row.EndedAt
	local.Status = models.SessionStatus(row.Status)
	local.Notes = row.Notes
	local.UpdatedAt = row.Stamp()
	local.DeletedAt = row.DeletedAt
	local.Dirty = false
	if err := e.store.PutSession(local); err != nil {
		return uuid.Nil, err
	}
	return local.ClientID, nil
}

// pullSessionSets merges backend set rows for one session, matching by
// server id first and by natural key as a fallback for rows the backend
// created before our corresponding local create was pushed. Returns the
// highest stamp seen.
func (e *Engine) pullSessionSets(ctx context.Context, sessionServerID string, sessionClientID uuid.UUID, since time.Time) (time.Time, error) {
	rows, err := e.client.ListSetsSince(ctx, sessionServerID, since)
	if err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 {
		return time.Time{}, nil
	}

	locals, err := e.store.ListSetsBySession(sessionClientID)
	if err != nil {
		return time.Time{}, err
	}
	unmatched := unsyncedSetsByKey(locals)

	var high time.Time
	for _, row := range rows {
		if s := row.Stamp(); s.After(high) {
			high = s
		}

		local, err := e.store.GetSetByServerID(row.ID)
		if errors.Is(err, storage.ErrNotFound) {
			if candidate, ok := unmatched[setKey{row.ExerciseName, row.SetNumber}]; ok {
				// Same situation as the post-create reconciliation, observed
				// from the pull side: adopt the backend row, keep local edits.
				delete(unmatched, setKey{row.ExerciseName, row.SetNumber})
				if err := e.adoptSet(candidate, row); err != nil {
					return time.Time{}, err
				}
				continue
			}
			local = &models.SetRecord{
				Ref:     models.NewRef(),
				Session: models.Ref{ClientID: sessionClientID, ServerID: sessionServerID},
			}
		} else if err != nil {
			return time.Time{}, err
		}

		local.ServerID = row.ID
		local.Session.ServerID = row.SessionID
		local.ExerciseName = row.ExerciseName
		local.SetNumber = row.SetNumber
		local.Reps = row.Reps
		local.Weight = row.Weight
		local.Completed = row.Completed
		local.CompletedAt = row.CompletedAt
		local.UpdatedAt = row.Stamp()
		local.DeletedAt = row.DeletedAt
		local.Dirty = false
		if err := e.store.PutSet(local); err != nil {
			return time.Time{}, err
		}
	}

	return high, nil
}

func exercisesFromPayload(in []remote.ExercisePayload) []models.ExerciseSpec {
	out := make([]models.ExerciseSpec, 0, len(in))
	for _, p := range in {
		out = append(out, models.ExerciseSpec{
			Name:         p.Name,
			TargetSets:   p.TargetSets,
			TargetReps:   p.TargetReps,
			TargetWeight: p.TargetWeight,
			RestSeconds:  p.RestSeconds,
		})
	}
	return out
}
