// ABOUTME: Shared test helpers for sync package tests.
// ABOUTME: Provides store setup, engine creation, and an in-memory backend.
package sync

import (
	"context"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// setupTestEngine creates an engine over a real SQLite store and a fresh
// in-memory backend.
func setupTestEngine(t *testing.T) (*Engine, storage.Repository, *fakeBackend) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "lift.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backend := newFakeBackend()
	cfg := &Config{
		Server:   "https://test.example.com",
		Token:    "test-token",
		DeviceID: "test-device",
	}
	return New(cfg, db, backend, nil), db, backend
}

// fakeBackend is an in-memory remote.Client. It records the order of calls,
// assigns srv_N ids, auto-provisions sets on session create, and can be told
// to fail or reject specific operations.
type fakeBackend struct {
	mu gosync.Mutex

	nextID    int
	templates map[string]remote.TemplateRow
	sessions  map[string]remote.SessionRow
	sets      map[string]remote.SetRow

	calls []string

	failures   map[string]int   // op -> remaining calls to fail with ErrUnavailable
	rejections map[string]bool  // op -> reject with a 4xx
	pingErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		templates:  make(map[string]remote.TemplateRow),
		sessions:   make(map[string]remote.SessionRow),
		sets:       make(map[string]remote.SetRow),
		failures:   make(map[string]int),
		rejections: make(map[string]bool),
	}
}

func (f *fakeBackend) genID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

// failNext makes the next n calls of op return remote.ErrUnavailable.
func (f *fakeBackend) failNext(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = n
}

// rejectAll makes every call of op return a permanent rejection.
func (f *fakeBackend) rejectAll(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections[op] = true
}

// gate records the call and returns the injected error for op, if any.
// Callers must hold f.mu.
func (f *fakeBackend) gate(op string) error {
	f.calls = append(f.calls, op)
	if f.rejections[op] {
		return &remote.RejectedError{Status: 422, Reason: "rejected by test"}
	}
	if f.failures[op] > 0 {
		f.failures[op]--
		return fmt.Errorf("%s: %w", op, remote.ErrUnavailable)
	}
	return nil
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("Ping"); err != nil {
		return err
	}
	return f.pingErr
}

func (f *fakeBackend) CreateTemplate(ctx context.Context, p remote.TemplatePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("CreateTemplate"); err != nil {
		return "", err
	}
	id := f.genID("tpl")
	f.templates[id] = remote.TemplateRow{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Exercises:   p.Exercises,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (f *fakeBackend) UpdateTemplate(ctx context.Context, serverID string, p remote.TemplatePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("UpdateTemplate"); err != nil {
		return err
	}
	row, ok := f.templates[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "template not found"}
	}
	row.Name = p.Name
	row.Description = p.Description
	row.Exercises = p.Exercises
	row.UpdatedAt = time.Now().UTC()
	f.templates[serverID] = row
	return nil
}

func (f *fakeBackend) DeleteTemplate(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("DeleteTemplate"); err != nil {
		return err
	}
	row, ok := f.templates[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "template not found"}
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	row.UpdatedAt = now
	f.templates[serverID] = row
	return nil
}

func (f *fakeBackend) ListTemplatesSince(ctx context.Context, since time.Time) ([]remote.TemplateRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("ListTemplatesSince"); err != nil {
		return nil, err
	}
	var out []remote.TemplateRow
	for _, row := range f.templates {
		if row.Stamp().After(since) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, p remote.SessionPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("CreateSession"); err != nil {
		return "", err
	}
	tpl, ok := f.templates[p.WorkoutID]
	if !ok {
		return "", &remote.RejectedError{Status: 404, Reason: "workout not found"}
	}

	id := f.genID("ses")
	started, _ := time.Parse(time.RFC3339Nano, p.StartedAt)
	f.sessions[id] = remote.SessionRow{
		ID:        id,
		WorkoutID: p.WorkoutID,
		StartedAt: started,
		Status:    p.Status,
		Notes:     p.Notes,
		CreatedAt: time.Now().UTC(),
	}

	// Provision the template's default sets, the way the real backend does.
	for _, ex := range tpl.Exercises {
		for n := 1; n <= ex.TargetSets; n++ {
			setID := f.genID("set")
			reps := 0
			if ex.TargetReps != nil {
				reps = *ex.TargetReps
			}
			f.sets[setID] = remote.SetRow{
				ID:           setID,
				SessionID:    id,
				ExerciseName: ex.Name,
				SetNumber:    n,
				Reps:         reps,
				Weight:       ex.TargetWeight,
				CreatedAt:    time.Now().UTC(),
			}
		}
	}
	return id, nil
}

func (f *fakeBackend) UpdateSession(ctx context.Context, serverID string, p remote.SessionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("UpdateSession"); err != nil {
		return err
	}
	row, ok := f.sessions[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "session not found"}
	}
	if p.EndedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *p.EndedAt); err == nil {
			row.EndedAt = &t
		}
	}
	row.Status = p.Status
	row.Notes = p.Notes
	row.UpdatedAt = time.Now().UTC()
	f.sessions[serverID] = row
	return nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("DeleteSession"); err != nil {
		return err
	}
	row, ok := f.sessions[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "session not found"}
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	row.UpdatedAt = now
	f.sessions[serverID] = row
	return nil
}

func (f *fakeBackend) ListSessionsSince(ctx context.Context, since time.Time) ([]remote.SessionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("ListSessionsSince"); err != nil {
		return nil, err
	}
	var out []remote.SessionRow
	for _, row := range f.sessions {
		if row.Stamp().After(since) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateSet(ctx context.Context, p remote.SetPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("CreateSet"); err != nil {
		return "", err
	}
	if _, ok := f.sessions[p.SessionID]; !ok {
		return "", &remote.RejectedError{Status: 404, Reason: "session not found"}
	}
	id := f.genID("set")
	f.sets[id] = remote.SetRow{
		ID:           id,
		SessionID:    p.SessionID,
		ExerciseName: p.ExerciseName,
		SetNumber:    p.SetNumber,
		Reps:         p.Reps,
		Weight:       p.Weight,
		Completed:    p.Completed,
		CreatedAt:    time.Now().UTC(),
	}
	return id, nil
}

func (f *fakeBackend) UpdateSet(ctx context.Context, serverID string, p remote.SetPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("UpdateSet"); err != nil {
		return err
	}
	row, ok := f.sets[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "set not found"}
	}
	row.Reps = p.Reps
	row.Weight = p.Weight
	row.UpdatedAt = time.Now().UTC()
	f.sets[serverID] = row
	return nil
}

func (f *fakeBackend) DeleteSet(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("DeleteSet"); err != nil {
		return err
	}
	row, ok := f.sets[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "set not found"}
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	row.UpdatedAt = now
	f.sets[serverID] = row
	return nil
}

func (f *fakeBackend) CompleteSet(ctx context.Context, serverID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("CompleteSet"); err != nil {
		return err
	}
	row, ok := f.sets[serverID]
	if !ok {
		return &remote.RejectedError{Status: 404, Reason: "set not found"}
	}
	row.Completed = true
	row.CompletedAt = &completedAt
	row.UpdatedAt = time.Now().UTC()
	f.sets[serverID] = row
	return nil
}

func (f *fakeBackend) ListSetsSince(ctx context.Context, sessionServerID string, since time.Time) ([]remote.SetRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate("ListSetsSince"); err != nil {
		return nil, err
	}
	var out []remote.SetRow
	for _, row := range f.sets {
		if row.SessionID == sessionServerID && row.Stamp().After(since) {
			out = append(out, row)
		}
	}
	return out, nil
}
