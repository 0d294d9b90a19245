// ABOUTME: Tests for the push synchronizer and outbox drain semantics.
// ABOUTME: Covers ordering, retry ceiling, rejections, and set adoption.
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// queueTemplateCreate persists a template and enqueues its create, the way
// the CLI does.
func queueTemplateCreate(t *testing.T, store storage.Repository, tpl *models.Template) {
	t.Helper()
	entry, err := storage.NewOutboxEntry(storage.TableTemplates, storage.OpCreate, tpl.ClientID, TemplatePayloadFor(tpl))
	require.NoError(t, err)
	require.NoError(t, store.WithTx(func(tx storage.Repository) error {
		if err := tx.PutTemplate(tpl); err != nil {
			return err
		}
		return tx.EnqueueOutbox(entry)
	}))
}

// queueSessionStart persists a session plus its placeholder sets and
// enqueues the single session create, the way the CLI does.
func queueSessionStart(t *testing.T, store storage.Repository, tpl *models.Template, sess *models.Session) []*models.SetRecord {
	t.Helper()
	var placeholders []*models.SetRecord
	for _, ex := range tpl.Exercises {
		for n := 1; n <= ex.TargetSets; n++ {
			sr := models.NewSetRecord(sess.Ref, ex.Name, n)
			if ex.TargetReps != nil {
				sr.Reps = *ex.TargetReps
			}
			sr.Weight = ex.TargetWeight
			placeholders = append(placeholders, sr)
		}
	}
	entry, err := storage.NewOutboxEntry(storage.TableSessions, storage.OpCreate, sess.ClientID, SessionPayloadFor(sess))
	require.NoError(t, err)
	require.NoError(t, store.WithTx(func(tx storage.Repository) error {
		if err := tx.PutSession(sess); err != nil {
			return err
		}
		for _, sr := range placeholders {
			if err := tx.PutSet(sr); err != nil {
				return err
			}
		}
		return tx.EnqueueOutbox(entry)
	}))
	return placeholders
}

func TestPushTemplateCreate(t *testing.T) {
	engine, store, _ := setupTestEngine(t)

	reps := 8
	tpl := models.NewTemplate("Push Day")
	tpl.WithExercise(models.ExerciseSpec{Name: "Bench Press", TargetSets: 3, TargetReps: &reps})
	queueTemplateCreate(t, store, tpl)

	require.NoError(t, engine.PushDirty(context.Background()))

	got, err := store.GetTemplate(tpl.ClientID.String())
	require.NoError(t, err)
	assert.Equal(t, "tpl_1", got.ServerID)
	assert.False(t, got.Dirty)

	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPushPreservesArrivalOrder(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	tpl := models.NewTemplate("Push Day")
	queueTemplateCreate(t, store, tpl)

	tpl.WithDescription("heavy")
	entry, err := storage.NewOutboxEntry(storage.TableTemplates, storage.OpUpdate, tpl.ClientID, TemplatePayloadFor(tpl))
	require.NoError(t, err)
	require.NoError(t, store.EnqueueOutbox(entry))

	require.NoError(t, engine.PushDirty(context.Background()))
	assert.Equal(t, []string{"CreateTemplate", "UpdateTemplate"}, backend.callLog())
}

func TestPushStopsAtRetryableFailure(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	first := models.NewTemplate("Push Day")
	second := models.NewTemplate("Leg Day")
	queueTemplateCreate(t, store, first)
	queueTemplateCreate(t, store, second)

	backend.failNext("CreateTemplate", 1)

	err := engine.PushDirty(context.Background())
	require.ErrorIs(t, err, remote.ErrUnavailable)

	// Neither entry left the queue: the second must not jump the first.
	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"CreateTemplate"}, backend.callLog())

	// The next round drains both in order.
	require.NoError(t, engine.PushDirty(context.Background()))
	assert.Equal(t, []string{"CreateTemplate", "CreateTemplate", "CreateTemplate"}, backend.callLog())
}

func TestPushAttemptCeiling(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	tpl := models.NewTemplate("Push Day")
	queueTemplateCreate(t, store, tpl)

	backend.failNext("CreateTemplate", 10)
	for i := 0; i < 5; i++ {
		err := engine.PushDirty(context.Background())
		require.ErrorIs(t, err, remote.ErrUnavailable)
	}

	// After the fifth failed attempt the entry moves to dead letters.
	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	dead, err := store.CountDeadLetters()
	require.NoError(t, err)
	assert.Equal(t, 1, dead)
}

func TestPushRejectionSkipsCeiling(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	bad := models.NewTemplate("Bad Template")
	good := models.NewTemplate("Good Template")
	queueTemplateCreate(t, store, bad)
	queueTemplateCreate(t, store, good)

	backend.rejectAll("CreateTemplate")

	// A rejection parks the entry immediately and the round keeps going.
	require.NoError(t, engine.PushDirty(context.Background()))

	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	dead, err := store.CountDeadLetters()
	require.NoError(t, err)
	assert.Equal(t, 2, dead)
}

func TestPushSessionResolvesWorkoutID(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	tpl := models.NewTemplate("Push Day")
	queueTemplateCreate(t, store, tpl)

	sess := models.NewSession(tpl.Ref)
	queueSessionStart(t, store, tpl, sess)

	require.NoError(t, engine.PushDirty(context.Background()))

	got, err := store.GetSession(sess.ClientID.String())
	require.NoError(t, err)
	assert.Equal(t, "ses_2", got.ServerID)
	assert.Equal(t, "tpl_1", got.Workout.ServerID)
	assert.False(t, got.Dirty)

	backend.mu.Lock()
	row := backend.sessions[got.ServerID]
	backend.mu.Unlock()
	assert.Equal(t, "tpl_1", row.WorkoutID)
}

func TestPushSessionAdoptsProvisionedSets(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	reps := 8
	tpl := models.NewTemplate("Push Day")
	tpl.WithExercise(models.ExerciseSpec{Name: "Bench Press", TargetSets: 3, TargetReps: &reps})
	queueTemplateCreate(t, store, tpl)

	sess := models.NewSession(tpl.Ref)
	queueSessionStart(t, store, tpl, sess)

	require.NoError(t, engine.PushDirty(context.Background()))

	// Exactly the three placeholders, each adopted with a backend id; no
	// duplicate rows and no queued set creates.
	sets, err := store.ListSetsBySession(sess.ClientID)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	for _, sr := range sets {
		assert.True(t, sr.Synced(), "set %s %d missing server id", sr.ExerciseName, sr.SetNumber)
		assert.False(t, sr.Dirty)
	}

	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NotContains(t, backend.callLog(), "CreateSet")
}

func TestPushSessionAdoptionKeepsLocalEdits(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	reps := 8
	tpl := models.NewTemplate("Push Day")
	tpl.WithExercise(models.ExerciseSpec{Name: "Bench Press", TargetSets: 1, TargetReps: &reps})
	queueTemplateCreate(t, store, tpl)

	sess := models.NewSession(tpl.Ref)
	placeholders := queueSessionStart(t, store, tpl, sess)

	// Log a result against the placeholder while still offline.
	weight := 100.0
	edited := placeholders[0]
	edited.WithReps(10).WithWeight(weight)
	edited.Complete(time.Now().UTC())
	require.NoError(t, store.PutSet(edited))

	require.NoError(t, engine.PushDirty(context.Background()))

	// The edit and completion were re-queued against the adopted id and the
	// same push round drained them.
	got, err := store.GetSet(edited.ClientID.String())
	require.NoError(t, err)
	require.True(t, got.Synced())
	assert.False(t, got.Dirty)

	backend.mu.Lock()
	row := backend.sets[got.ServerID]
	backend.mu.Unlock()
	assert.Equal(t, 10, row.Reps)
	require.NotNil(t, row.Weight)
	assert.Equal(t, weight, *row.Weight)
	assert.True(t, row.Completed)
}

func TestPushSessionBlockedUntilTemplateSynced(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	tpl := models.NewTemplate("Push Day")
	sess := models.NewSession(tpl.Ref)

	// Session queued but the template create is missing entirely: the round
	// cannot make progress and must leave the entry in place.
	queueSessionStart(t, store, tpl, sess)

	err := engine.PushDirty(context.Background())
	require.Error(t, err)
	assert.Empty(t, backend.callLog())

	n, err := store.CountOutbox()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPushDeleteWithoutServerIDIsLocalOnly(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	tpl := models.NewTemplate("Push Day")
	now := time.Now().UTC()
	tpl.DeletedAt = &now
	require.NoError(t, store.PutTemplate(tpl))

	entry, err := storage.NewOutboxEntry(storage.TableTemplates, storage.OpDelete, tpl.ClientID, TemplatePayloadFor(tpl))
	require.NoError(t, err)
	require.NoError(t, store.EnqueueOutbox(entry))

	require.NoError(t, engine.PushDirty(context.Background()))

	// Never synced, so no remote call is made.
	assert.NotContains(t, backend.callLog(), "DeleteTemplate")

	got, err := store.GetTemplate(tpl.ClientID.String())
	require.NoError(t, err)
	assert.False(t, got.Dirty)
	assert.NotNil(t, got.DeletedAt)
}

func TestPushCompleteSet(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	reps := 5
	tpl := models.NewTemplate("Leg Day")
	tpl.WithExercise(models.ExerciseSpec{Name: "Squat", TargetSets: 1, TargetReps: &reps})
	queueTemplateCreate(t, store, tpl)

	sess := models.NewSession(tpl.Ref)
	placeholders := queueSessionStart(t, store, tpl, sess)
	require.NoError(t, engine.PushDirty(context.Background()))

	// Complete after the session synced: a plain complete entry.
	sr, err := store.GetSet(placeholders[0].ClientID.String())
	require.NoError(t, err)
	completedAt := time.Now().UTC()
	sr.Complete(completedAt)
	entry, err := storage.NewOutboxEntry(storage.TableSets, storage.OpComplete, sr.ClientID, SetPayloadFor(sr))
	require.NoError(t, err)
	require.NoError(t, store.WithTx(func(tx storage.Repository) error {
		if err := tx.PutSet(sr); err != nil {
			return err
		}
		return tx.EnqueueOutbox(entry)
	}))

	require.NoError(t, engine.PushDirty(context.Background()))

	backend.mu.Lock()
	row := backend.sets[sr.ServerID]
	backend.mu.Unlock()
	assert.True(t, row.Completed)
	require.NotNil(t, row.CompletedAt)
	assert.WithinDuration(t, completedAt, *row.CompletedAt, time.Second)
}
