// ABOUTME: Tests for the pull synchronizer and watermark bookkeeping.
// ABOUTME: Covers merge-by-server-id, insert, tombstones, and idempotency.
package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

func seedBackendTemplate(backend *fakeBackend, id, name string, stamp time.Time) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.templates[id] = remote.TemplateRow{
		ID:        id,
		Name:      name,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

func TestPullTemplatesInsertsNewRows(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)

	require.NoError(t, engine.pullTemplates(context.Background()))

	got, err := store.GetTemplateByServerID("tpl_a")
	require.NoError(t, err)
	assert.Equal(t, "Push Day", got.Name)
	assert.False(t, got.Dirty)
	assert.NotEqual(t, uuid.Nil, got.ClientID, "pulled row needs a client id")

	wm, err := store.Watermark(storage.TableTemplates)
	require.NoError(t, err)
	assert.True(t, wm.Equal(stamp))
}

func TestPullTemplatesMergesByServerID(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	require.NoError(t, engine.pullTemplates(context.Background()))

	first, err := store.GetTemplateByServerID("tpl_a")
	require.NoError(t, err)

	seedBackendTemplate(backend, "tpl_a", "Push Day v2", stamp.Add(time.Hour))
	require.NoError(t, engine.pullTemplates(context.Background()))

	second, err := store.GetTemplateByServerID("tpl_a")
	require.NoError(t, err)
	assert.Equal(t, first.ClientID, second.ClientID, "merge must not mint a new client id")
	assert.Equal(t, "Push Day v2", second.Name)

	all, err := store.ListTemplates(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPullTemplatesTombstone(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	require.NoError(t, engine.pullTemplates(context.Background()))

	deleted := stamp.Add(time.Hour)
	backend.mu.Lock()
	row := backend.templates["tpl_a"]
	row.DeletedAt = &deleted
	row.UpdatedAt = deleted
	backend.templates["tpl_a"] = row
	backend.mu.Unlock()

	require.NoError(t, engine.pullTemplates(context.Background()))

	got, err := store.GetTemplateByServerID("tpl_a")
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(deleted))
}

func TestPullWatermarkUnchangedOnEmptyFetch(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	require.NoError(t, engine.pullTemplates(context.Background()))

	// Nothing changed upstream: the second pull returns no rows and must
	// not move the checkpoint.
	require.NoError(t, engine.pullTemplates(context.Background()))

	wm, err := store.Watermark(storage.TableTemplates)
	require.NoError(t, err)
	assert.True(t, wm.Equal(stamp))
}

func TestPullIsIdempotent(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)

	require.NoError(t, engine.pullTemplates(context.Background()))
	// Replaying the same rows (fresh watermark) converges to the same state.
	require.NoError(t, store.SetWatermark(storage.TableTemplates, time.Time{}))
	require.NoError(t, engine.pullTemplates(context.Background()))

	all, err := store.ListTemplates(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPullSessionsResolvesWorkoutRef(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	backend.mu.Lock()
	backend.sessions["ses_a"] = remote.SessionRow{
		ID:        "ses_a",
		WorkoutID: "tpl_a",
		StartedAt: stamp,
		Status:    string(models.SessionActive),
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	backend.mu.Unlock()

	require.NoError(t, engine.pullTemplates(context.Background()))
	require.NoError(t, engine.pullSessions(context.Background()))

	tpl, err := store.GetTemplateByServerID("tpl_a")
	require.NoError(t, err)
	sess, err := store.GetSessionByServerID("ses_a")
	require.NoError(t, err)
	assert.Equal(t, tpl.ClientID, sess.Workout.ClientID)
	assert.Equal(t, "tpl_a", sess.Workout.ServerID)
	assert.False(t, sess.Dirty)
}

func TestPullSessionSetsInsertFresh(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	backend.mu.Lock()
	backend.sessions["ses_a"] = remote.SessionRow{
		ID: "ses_a", WorkoutID: "tpl_a", StartedAt: stamp,
		Status: string(models.SessionActive), CreatedAt: stamp, UpdatedAt: stamp,
	}
	backend.sets["set_a"] = remote.SetRow{
		ID: "set_a", SessionID: "ses_a", ExerciseName: "Bench Press",
		SetNumber: 1, Reps: 8, CreatedAt: stamp, UpdatedAt: stamp,
	}
	backend.mu.Unlock()

	require.NoError(t, engine.pullSessions(context.Background()))

	sess, err := store.GetSessionByServerID("ses_a")
	require.NoError(t, err)
	sets, err := store.ListSetsBySession(sess.ClientID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "set_a", sets[0].ServerID)
	assert.Equal(t, 8, sets[0].Reps)

	wm, err := store.Watermark(storage.TableSets)
	require.NoError(t, err)
	assert.True(t, wm.Equal(stamp))
}

func TestPullSessionSetsNaturalKeyAdoption(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	// A session that synced, whose backend-side sets were never adopted
	// (e.g. the cycle died between the create and the reconciliation).
	stamp := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tpl := models.NewTemplate("Push Day")
	tpl.ServerID = "tpl_a"
	tpl.Dirty = false
	require.NoError(t, store.PutTemplate(tpl))

	sess := models.NewSession(tpl.Ref)
	sess.ServerID = "ses_a"
	sess.Dirty = false
	require.NoError(t, store.PutSession(sess))

	local := models.NewSetRecord(sess.Ref, "Bench Press", 1)
	local.WithReps(10)
	require.NoError(t, store.PutSet(local))

	seedBackendTemplate(backend, "tpl_a", "Push Day", stamp)
	backend.mu.Lock()
	backend.sessions["ses_a"] = remote.SessionRow{
		ID: "ses_a", WorkoutID: "tpl_a", StartedAt: stamp,
		Status: string(models.SessionActive), CreatedAt: stamp, UpdatedAt: stamp,
	}
	backend.sets["set_a"] = remote.SetRow{
		ID: "set_a", SessionID: "ses_a", ExerciseName: "Bench Press",
		SetNumber: 1, Reps: 8, CreatedAt: stamp, UpdatedAt: stamp,
	}
	backend.mu.Unlock()

	require.NoError(t, engine.pullSessions(context.Background()))

	// The local row adopted the backend id instead of a duplicate appearing,
	// and its pending edit (10 reps vs 8) was queued as an update.
	sets, err := store.ListSetsBySession(sess.ClientID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "set_a", sets[0].ServerID)
	assert.Equal(t, 10, sets[0].Reps)
	assert.True(t, sets[0].Dirty)

	has, err := store.HasOutboxFor(storage.TableSets, local.ClientID, storage.OpUpdate)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPullSetsWatermarkIsGlobal(t *testing.T) {
	engine, store, backend := setupTestEngine(t)

	early := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)
	seedBackendTemplate(backend, "tpl_a", "Push Day", early)
	backend.mu.Lock()
	backend.sessions["ses_a"] = remote.SessionRow{
		ID: "ses_a", WorkoutID: "tpl_a", StartedAt: early,
		Status: string(models.SessionActive), CreatedAt: early, UpdatedAt: early,
	}
	backend.sessions["ses_b"] = remote.SessionRow{
		ID: "ses_b", WorkoutID: "tpl_a", StartedAt: late,
		Status: string(models.SessionActive), CreatedAt: late, UpdatedAt: late,
	}
	backend.sets["set_a"] = remote.SetRow{
		ID: "set_a", SessionID: "ses_a", ExerciseName: "Squat",
		SetNumber: 1, CreatedAt: early, UpdatedAt: early,
	}
	backend.sets["set_b"] = remote.SetRow{
		ID: "set_b", SessionID: "ses_b", ExerciseName: "Squat",
		SetNumber: 1, CreatedAt: late, UpdatedAt: late,
	}
	backend.mu.Unlock()

	require.NoError(t, engine.pullSessions(context.Background()))

	// One checkpoint for all sessions: the max stamp across both set fetches.
	wm, err := store.Watermark(storage.TableSets)
	require.NoError(t, err)
	assert.True(t, wm.Equal(late))
}
