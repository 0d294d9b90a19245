// ABOUTME: Natural-key reconciliation between local and backend set records.
// ABOUTME: Adopts backend-provisioned rows instead of pushing duplicate creates.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// setKey is the natural key for a set record within a session. It is only
// used to join rows created independently on both sides before a server id
// exists; it is not a primary key.
type setKey struct {
	exercise  string
	setNumber int
}

// unsyncedSetsByKey indexes a session's local set records that have no
// server id yet.
func unsyncedSetsByKey(locals []*models.SetRecord) map[setKey]*models.SetRecord {
	idx := make(map[setKey]*models.SetRecord)
	for _, sr := range locals {
		if sr.Synced() {
			continue
		}
		idx[setKey{sr.ExerciseName, sr.SetNumber}] = sr
	}
	return idx
}

// reconcileSessionSets runs after a session create succeeds. Starting a
// session is a single backend call that auto-provisions the template's
// default set rows, while the client created its own placeholders offline.
// Each backend row is matched to a local unsynced row by natural key and
// adopted; local edits on adopted rows become fresh update/complete entries
// targeting the now-known server id. Unmatched locals stay dirty and retry
// as creates on a later cycle.
func (e *Engine) reconcileSessionSets(ctx context.Context, sessionClientID uuid.UUID, sessionServerID string) error {
	// The session is brand new, so a full fetch is cheap and complete.
	rows, err := e.client.ListSetsSince(ctx, sessionServerID, time.Time{})
	if err != nil {
		return err
	}

	locals, err := e.store.ListSetsBySession(sessionClientID)
	if err != nil {
		return err
	}
	unmatched := unsyncedSetsByKey(locals)

	for _, row := range rows {
		local, ok := unmatched[setKey{row.ExerciseName, row.SetNumber}]
		if !ok {
			continue
		}
		delete(unmatched, setKey{row.ExerciseName, row.SetNumber})

		if err := e.adoptSet(local, row); err != nil {
			return err
		}
	}

	// Whatever failed to match retries as a create later. Normally empty,
	// since local placeholders come from the same template.
	for _, sr := range unmatched {
		queued, err := e.store.HasOutboxFor(storage.TableSets, sr.ClientID, storage.OpCreate)
		if err != nil {
			return err
		}
		if queued {
			continue
		}
		e.logger.Warn("set record has no backend match, queuing create",
			"session", sessionClientID, "exercise", sr.ExerciseName, "set", sr.SetNumber)
		if err := e.enqueueSetCreate(sr); err != nil {
			return err
		}
	}

	return nil
}

// adoptSet takes a backend row's id into the matched local record. The
// local create semantics for the record are discarded; edits already made
// locally re-queue as updates against the adopted id.
func (e *Engine) adoptSet(local *models.SetRecord, row remote.SetRow) error {
	if err := e.store.DeleteOutboxFor(storage.TableSets, local.ClientID, storage.OpCreate); err != nil {
		return err
	}

	edited := local.Reps != row.Reps || !floatPtrEq(local.Weight, row.Weight)
	completionPending := local.Completed && !row.Completed

	local.ServerID = row.ID
	local.Session.ServerID = row.SessionID
	local.Dirty = edited || completionPending
	if err := e.store.PutSet(local); err != nil {
		return err
	}

	if edited {
		payload := remote.SetPayload{
			SessionID:    row.SessionID,
			ExerciseName: local.ExerciseName,
			SetNumber:    local.SetNumber,
			Reps:         local.Reps,
			Weight:       local.Weight,
			Completed:    local.Completed,
		}
		entry, err := storage.NewOutboxEntry(storage.TableSets, storage.OpUpdate, local.ClientID, payload)
		if err != nil {
			return err
		}
		if err := e.store.EnqueueOutbox(entry); err != nil {
			return err
		}
	}

	if completionPending {
		var completedAt *string
		if local.CompletedAt != nil {
			s := local.CompletedAt.UTC().Format(time.RFC3339Nano)
			completedAt = &s
		}
		payload := remote.SetPayload{
			SessionID:    row.SessionID,
			ExerciseName: local.ExerciseName,
			SetNumber:    local.SetNumber,
			Reps:         local.Reps,
			Completed:    true,
			CompletedAt:  completedAt,
		}
		entry, err := storage.NewOutboxEntry(storage.TableSets, storage.OpComplete, local.ClientID, payload)
		if err != nil {
			return err
		}
		if err := e.store.EnqueueOutbox(entry); err != nil {
			return err
		}
	}

	// When edits were queued the record stays dirty; the queued entries
	// clear it as they drain.
	return nil
}

func (e *Engine) enqueueSetCreate(sr *models.SetRecord) error {
	payload := remote.SetPayload{
		SessionID:    sr.Session.ServerID,
		ExerciseName: sr.ExerciseName,
		SetNumber:    sr.SetNumber,
		Reps:         sr.Reps,
		Weight:       sr.Weight,
		Completed:    sr.Completed,
	}
	entry, err := storage.NewOutboxEntry(storage.TableSets, storage.OpCreate, sr.ClientID, payload)
	if err != nil {
		return err
	}
	return e.store.EnqueueOutbox(entry)
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
