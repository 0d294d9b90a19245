// ABOUTME: Push synchronizer: drains the outbox FIFO against the backend.
// ABOUTME: Stops at the first retryable failure to preserve arrival order.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// PushDirty processes the outbox strictly in arrival order, one entry at a
// time. A retryable failure stops the round so no entry is ever replayed
// ahead of one still stuck in front of it. Application rejections and
// ceiling-exhausted entries are moved to the dead-letter table instead.
func (e *Engine) PushDirty(ctx context.Context) error {
	for {
		entry, err := e.store.PeekOutbox()
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		err = e.dispatch(ctx, entry)
		if err == nil {
			if err := e.store.DeleteOutbox(entry.ID); err != nil {
				return err
			}
			continue
		}

		var rej *remote.RejectedError
		if errors.As(err, &rej) {
			// Permanent rejection: retrying the same payload cannot
			// succeed. Park it and keep draining.
			e.logger.Warn("outbox entry rejected", "table", entry.Table, "op", entry.Op, "err", err)
			entry.Attempts++
			if err := e.store.DeadLetter(entry, rej.Error()); err != nil {
				return err
			}
			if err := e.store.DeleteOutbox(entry.ID); err != nil {
				return err
			}
			continue
		}

		if err2 := e.store.BumpOutboxAttempts(entry.ID); err2 != nil {
			return err2
		}
		entry.Attempts++
		if entry.Attempts >= e.ceiling {
			e.logger.Error("dropping outbox entry after repeated failures",
				"table", entry.Table, "op", entry.Op, "attempts", entry.Attempts, "err", err)
			if err2 := e.store.DeadLetter(entry, err.Error()); err2 != nil {
				return err2
			}
			if err2 := e.store.DeleteOutbox(entry.ID); err2 != nil {
				return err2
			}
		}
		return err
	}
}

// dispatch replays one outbox entry against the backend and applies the
// resulting local bookkeeping.
func (e *Engine) dispatch(ctx context.Context, entry *storage.OutboxEntry) error {
	switch entry.Table {
	case storage.TableTemplates:
		return e.pushTemplate(ctx, entry)
	case storage.TableSessions:
		return e.pushSession(ctx, entry)
	case storage.TableSets:
		return e.pushSet(ctx, entry)
	default:
		return &remote.RejectedError{Status: 0, Reason: fmt.Sprintf("unknown outbox table %q", entry.Table)}
	}
}

func (e *Engine) pushTemplate(ctx context.Context, entry *storage.OutboxEntry) error {
	var p remote.TemplatePayload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return &remote.RejectedError{Reason: fmt.Sprintf("malformed template payload: %v", err)}
	}

	switch entry.Op {
	case storage.OpCreate:
		serverID, err := e.client.CreateTemplate(ctx, p)
		if err != nil {
			return err
		}
		if err := e.store.MarkSynced(storage.TableTemplates, entry.ClientID, serverID); err != nil {
			return err
		}
		// Sessions queued against this template can now be pushed.
		return e.store.BackfillSessionWorkout(entry.ClientID, serverID)

	case storage.OpUpdate:
		serverID, err := e.resolveServerID(storage.TableTemplates, entry)
		if err != nil {
			return err
		}
		if err := e.client.UpdateTemplate(ctx, serverID, p); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableTemplates, entry.ClientID)

	case storage.OpDelete:
		serverID, err := e.resolveServerID(storage.TableTemplates, entry)
		if err != nil {
			return err
		}
		if serverID == "" {
			// Never reached the backend; nothing to delete remotely.
			return e.store.ClearDirty(storage.TableTemplates, entry.ClientID)
		}
		if err := e.client.DeleteTemplate(ctx, serverID); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableTemplates, entry.ClientID)

	default:
		return &remote.RejectedError{Reason: fmt.Sprintf("unsupported template op %q", entry.Op)}
	}
}

func (e *Engine) pushSession(ctx context.Context, entry *storage.OutboxEntry) error {
	var p remote.SessionPayload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return &remote.RejectedError{Reason: fmt.Sprintf("malformed session payload: %v", err)}
	}

	switch entry.Op {
	case storage.OpCreate:
		sess, err := e.store.GetSession(entry.ClientID.String())
		if err != nil {
			return err
		}
		if p.WorkoutID == "" {
			if !sess.Workout.Synced() {
				return fmt.Errorf("template %s not yet synced", sess.Workout.ClientID)
			}
			p.WorkoutID = sess.Workout.ServerID
		}

		serverID, err := e.client.CreateSession(ctx, p)
		if err != nil {
			return err
		}
		if err := e.store.MarkSynced(storage.TableSessions, entry.ClientID, serverID); err != nil {
			return err
		}
		if err := e.store.BackfillSetSession(entry.ClientID, serverID); err != nil {
			return err
		}
		// The backend auto-provisioned default set rows; adopt them instead
		// of pushing duplicate creates.
		return e.reconcileSessionSets(ctx, entry.ClientID, serverID)

	case storage.OpUpdate:
		serverID, err := e.resolveServerID(storage.TableSessions, entry)
		if err != nil {
			return err
		}
		if err := e.client.UpdateSession(ctx, serverID, p); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableSessions, entry.ClientID)

	case storage.OpDelete:
		serverID, err := e.resolveServerID(storage.TableSessions, entry)
		if err != nil {
			return err
		}
		if serverID == "" {
			return e.store.ClearDirty(storage.TableSessions, entry.ClientID)
		}
		if err := e.client.DeleteSession(ctx, serverID); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableSessions, entry.ClientID)

	default:
		return &remote.RejectedError{Reason: fmt.Sprintf("unsupported session op %q", entry.Op)}
	}
}

func (e *Engine) pushSet(ctx context.Context, entry *storage.OutboxEntry) error {
	var p remote.SetPayload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return &remote.RejectedError{Reason: fmt.Sprintf("malformed set payload: %v", err)}
	}

	switch entry.Op {
	case storage.OpCreate:
		sr, err := e.store.GetSet(entry.ClientID.String())
		if err != nil {
			return err
		}
		if p.SessionID == "" {
			if !sr.Session.Synced() {
				return fmt.Errorf("session %s not yet synced", sr.Session.ClientID)
			}
			p.SessionID = sr.Session.ServerID
		}
		serverID, err := e.client.CreateSet(ctx, p)
		if err != nil {
			return err
		}
		return e.store.MarkSynced(storage.TableSets, entry.ClientID, serverID)

	case storage.OpUpdate:
		serverID, err := e.resolveServerID(storage.TableSets, entry)
		if err != nil {
			return err
		}
		if err := e.client.UpdateSet(ctx, serverID, p); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableSets, entry.ClientID)

	case storage.OpComplete:
		serverID, err := e.resolveServerID(storage.TableSets, entry)
		if err != nil {
			return err
		}
		completedAt := time.Now().UTC()
		if p.CompletedAt != nil {
			if t, err := time.Parse(time.RFC3339Nano, *p.CompletedAt); err == nil {
				completedAt = t
			}
		}
		if err := e.client.CompleteSet(ctx, serverID, completedAt); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableSets, entry.ClientID)

	case storage.OpDelete:
		serverID, err := e.resolveServerID(storage.TableSets, entry)
		if err != nil {
			return err
		}
		if serverID == "" {
			return e.store.ClearDirty(storage.TableSets, entry.ClientID)
		}
		if err := e.client.DeleteSet(ctx, serverID); err != nil {
			return err
		}
		return e.store.ClearDirty(storage.TableSets, entry.ClientID)

	default:
		return &remote.RejectedError{Reason: fmt.Sprintf("unsupported set op %q", entry.Op)}
	}
}

// resolveServerID looks up the backend id for the entry's record. A missing
// id on a non-create op means the record's create has not succeeded yet;
// the caller treats that as retryable (it is queued behind the create).
func (e *Engine) resolveServerID(table string, entry *storage.OutboxEntry) (string, error) {
	var ref models.Ref
	switch table {
	case storage.TableTemplates:
		t, err := e.store.GetTemplate(entry.ClientID.String())
		if err != nil {
			return "", err
		}
		ref = t.Ref
	case storage.TableSessions:
		s, err := e.store.GetSession(entry.ClientID.String())
		if err != nil {
			return "", err
		}
		ref = s.Ref
	case storage.TableSets:
		sr, err := e.store.GetSet(entry.ClientID.String())
		if err != nil {
			return "", err
		}
		ref = sr.Ref
	}

	if !ref.Synced() && entry.Op != storage.OpDelete {
		return "", fmt.Errorf("%s record %s not yet synced", table, entry.ClientID)
	}
	return ref.ServerID, nil
}
