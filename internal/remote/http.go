// ABOUTME: HTTP implementation of the backend Client interface.
// ABOUTME: Maps transport/5xx failures to ErrUnavailable and 4xx to RejectedError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
)

// HTTPClient talks to the hosted backend over JSON/HTTP.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	logger *log.Logger
}

// NewHTTPClient creates a backend client for the given base URL.
func NewHTTPClient(baseURL, token string, logger *log.Logger) *HTTPClient {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Ping probes connectivity.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/ping", nil, nil)
}

// CreateTemplate implements Client.
func (c *HTTPClient) CreateTemplate(ctx context.Context, p TemplatePayload) (string, error) {
	return c.create(ctx, "/v1/templates", p)
}

// UpdateTemplate implements Client.
func (c *HTTPClient) UpdateTemplate(ctx context.Context, serverID string, p TemplatePayload) error {
	return c.do(ctx, http.MethodPut, "/v1/templates/"+url.PathEscape(serverID), p, nil)
}

// DeleteTemplate implements Client.
func (c *HTTPClient) DeleteTemplate(ctx context.Context, serverID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/templates/"+url.PathEscape(serverID), nil, nil)
}

// ListTemplatesSince implements Client.
func (c *HTTPClient) ListTemplatesSince(ctx context.Context, since time.Time) ([]TemplateRow, error) {
	var wire []templateWire
	if err := c.do(ctx, http.MethodGet, "/v1/templates"+sinceQuery(since), nil, &wire); err != nil {
		return nil, err
	}
	rows := make([]TemplateRow, 0, len(wire))
	for _, w := range wire {
		row, err := w.row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateSession implements Client.
func (c *HTTPClient) CreateSession(ctx context.Context, p SessionPayload) (string, error) {
	return c.create(ctx, "/v1/sessions", p)
}

// UpdateSession implements Client.
func (c *HTTPClient) UpdateSession(ctx context.Context, serverID string, p SessionPayload) error {
	return c.do(ctx, http.MethodPut, "/v1/sessions/"+url.PathEscape(serverID), p, nil)
}

// DeleteSession implements Client.
func (c *HTTPClient) DeleteSession(ctx context.Context, serverID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(serverID), nil, nil)
}

// ListSessionsSince implements Client.
func (c *HTTPClient) ListSessionsSince(ctx context.Context, since time.Time) ([]SessionRow, error) {
	var wire []sessionWire
	if err := c.do(ctx, http.MethodGet, "/v1/sessions"+sinceQuery(since), nil, &wire); err != nil {
		return nil, err
	}
	rows := make([]SessionRow, 0, len(wire))
	for _, w := range wire {
		row, err := w.row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CreateSet implements Client.
func (c *HTTPClient) CreateSet(ctx context.Context, p SetPayload) (string, error) {
	return c.create(ctx, "/v1/sets", p)
}

// UpdateSet implements Client.
func (c *HTTPClient) UpdateSet(ctx context.Context, serverID string, p SetPayload) error {
	return c.do(ctx, http.MethodPut, "/v1/sets/"+url.PathEscape(serverID), p, nil)
}

// DeleteSet implements Client.
func (c *HTTPClient) DeleteSet(ctx context.Context, serverID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sets/"+url.PathEscape(serverID), nil, nil)
}

// CompleteSet implements Client.
func (c *HTTPClient) CompleteSet(ctx context.Context, serverID string, completedAt time.Time) error {
	body := map[string]string{"completed_at": completedAt.UTC().Format(time.RFC3339Nano)}
	return c.do(ctx, http.MethodPost, "/v1/sets/"+url.PathEscape(serverID)+"/complete", body, nil)
}

// ListSetsSince implements Client.
func (c *HTTPClient) ListSetsSince(ctx context.Context, sessionServerID string, since time.Time) ([]SetRow, error) {
	path := "/v1/sessions/" + url.PathEscape(sessionServerID) + "/sets" + sinceQuery(since)
	var wire []setWire
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	rows := make([]SetRow, 0, len(wire))
	for _, w := range wire {
		row, err := w.row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *HTTPClient) create(ctx context.Context, path string, payload any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: create returned no id", ErrUnavailable)
	}
	return resp.ID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("backend rejected request", "method", method, "path", path, "status", resp.StatusCode)
		return &RejectedError{Status: resp.StatusCode, Reason: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func sinceQuery(since time.Time) string {
	if since.IsZero() {
		return ""
	}
	return "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
}

// Wire types carry RFC3339 timestamps as strings.

type templateWire struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Exercises   []ExercisePayload `json:"exercises"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at,omitempty"`
	DeletedAt   string            `json:"deleted_at,omitempty"`
}

func (w templateWire) row() (TemplateRow, error) {
	createdAt, updatedAt, deletedAt, err := wireTimes(w.CreatedAt, w.UpdatedAt, w.DeletedAt)
	if err != nil {
		return TemplateRow{}, err
	}
	return TemplateRow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Exercises:   w.Exercises,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}, nil
}

type sessionWire struct {
	ID        string  `json:"id"`
	WorkoutID string  `json:"workout_id"`
	StartedAt string  `json:"started_at"`
	EndedAt   string  `json:"ended_at,omitempty"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	DeletedAt string  `json:"deleted_at,omitempty"`
}

func (w sessionWire) row() (SessionRow, error) {
	createdAt, updatedAt, deletedAt, err := wireTimes(w.CreatedAt, w.UpdatedAt, w.DeletedAt)
	if err != nil {
		return SessionRow{}, err
	}
	startedAt, err := parseWireTime(w.StartedAt)
	if err != nil {
		return SessionRow{}, err
	}
	endedAt, err := parseWireTimePtr(w.EndedAt)
	if err != nil {
		return SessionRow{}, err
	}
	return SessionRow{
		ID:        w.ID,
		WorkoutID: w.WorkoutID,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Status:    w.Status,
		Notes:     w.Notes,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}, nil
}

type setWire struct {
	ID           string   `json:"id"`
	SessionID    string   `json:"session_id"`
	ExerciseName string   `json:"exercise_name"`
	SetNumber    int      `json:"set_number"`
	Reps         int      `json:"reps"`
	Weight       *float64 `json:"weight,omitempty"`
	Completed    bool     `json:"completed"`
	CompletedAt  string   `json:"completed_at,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	DeletedAt    string   `json:"deleted_at,omitempty"`
}

func (w setWire) row() (SetRow, error) {
	createdAt, updatedAt, deletedAt, err := wireTimes(w.CreatedAt, w.UpdatedAt, w.DeletedAt)
	if err != nil {
		return SetRow{}, err
	}
	completedAt, err := parseWireTimePtr(w.CompletedAt)
	if err != nil {
		return SetRow{}, err
	}
	return SetRow{
		ID:           w.ID,
		SessionID:    w.SessionID,
		ExerciseName: w.ExerciseName,
		SetNumber:    w.SetNumber,
		Reps:         w.Reps,
		Weight:       w.Weight,
		Completed:    w.Completed,
		CompletedAt:  completedAt,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}, nil
}

func wireTimes(created, updated, deleted string) (time.Time, time.Time, *time.Time, error) {
	createdAt, err := parseWireTime(created)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	var updatedAt time.Time
	if updated != "" {
		if updatedAt, err = parseWireTime(updated); err != nil {
			return time.Time{}, time.Time{}, nil, err
		}
	}
	deletedAt, err := parseWireTimePtr(deleted)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	return createdAt, updatedAt, deletedAt, nil
}

func parseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse backend timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseWireTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseWireTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
