// ABOUTME: Tests for the HTTP backend client.
// ABOUTME: Covers error classification, auth headers, and response parsing.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewHTTPClient(srv.URL, "test-token", nil), srv
}

func TestPingSendsAuthHeader(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization mismatch: got %q", gotAuth)
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	err := client.Ping(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", "", nil)
	client.HTTP.Timeout = time.Second

	err := client.Ping(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientErrorIsRejected(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "name is required")
	})
	defer srv.Close()

	_, err := client.CreateTemplate(context.Background(), TemplatePayload{})
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rej.Status != http.StatusUnprocessableEntity {
		t.Errorf("Status mismatch: got %d", rej.Status)
	}
	if rej.Reason != "name is required" {
		t.Errorf("Reason mismatch: got %q", rej.Reason)
	}
}

func TestCreateReturnsID(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/templates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"tpl_42"}`)
	})
	defer srv.Close()

	id, err := client.CreateTemplate(context.Background(), TemplatePayload{Name: "Push Day"})
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	if id != "tpl_42" {
		t.Errorf("id mismatch: got %q", id)
	}
}

func TestCreateWithoutIDIsUnavailable(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	defer srv.Close()

	_, err := client.CreateTemplate(context.Background(), TemplatePayload{Name: "Push Day"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestListTemplatesSinceQuery(t *testing.T) {
	var gotSince string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		fmt.Fprint(w, `[
			{"id":"tpl_1","name":"Push Day","created_at":"2026-08-01T09:00:00Z"},
			{"id":"tpl_2","name":"Leg Day","created_at":"2026-08-01T09:00:00Z",
			 "updated_at":"2026-08-02T10:30:00Z","deleted_at":"2026-08-02T10:30:00Z"}
		]`)
	})
	defer srv.Close()

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	rows, err := client.ListTemplatesSince(context.Background(), since)
	if err != nil {
		t.Fatalf("ListTemplatesSince failed: %v", err)
	}
	if gotSince != "2026-08-01T00:00:00Z" {
		t.Errorf("since query mismatch: got %q", gotSince)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Stamp().Equal(rows[0].CreatedAt) {
		t.Errorf("Stamp should fall back to CreatedAt when never updated")
	}
	if rows[1].DeletedAt == nil {
		t.Error("tombstone not parsed")
	}
	if !rows[1].Stamp().Equal(rows[1].UpdatedAt) {
		t.Errorf("Stamp should prefer UpdatedAt: got %v", rows[1].Stamp())
	}
}

func TestListZeroSinceOmitsQuery(t *testing.T) {
	var gotQuery string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[]`)
	})
	defer srv.Close()

	if _, err := client.ListTemplatesSince(context.Background(), time.Time{}); err != nil {
		t.Fatalf("ListTemplatesSince failed: %v", err)
	}
	if gotQuery != "" {
		t.Errorf("expected no query for zero watermark, got %q", gotQuery)
	}
}

func TestListSessionSets(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/ses_1/sets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"id":"set_1","session_id":"ses_1","exercise_name":"Bench Press",
			 "set_number":1,"reps":8,"weight":80.5,"completed":true,
			 "completed_at":"2026-08-01T09:15:00Z","created_at":"2026-08-01T09:00:00Z"}
		]`)
	})
	defer srv.Close()

	rows, err := client.ListSetsSince(context.Background(), "ses_1", time.Time{})
	if err != nil {
		t.Fatalf("ListSetsSince failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.ExerciseName != "Bench Press" || row.SetNumber != 1 || row.Reps != 8 {
		t.Errorf("row mismatch: %+v", row)
	}
	if row.Weight == nil || *row.Weight != 80.5 {
		t.Errorf("Weight mismatch: %v", row.Weight)
	}
	if !row.Completed || row.CompletedAt == nil {
		t.Errorf("completion not parsed: %+v", row)
	}
}

func TestCompleteSetBody(t *testing.T) {
	var gotPath string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	at := time.Date(2026, 8, 1, 9, 15, 0, 0, time.UTC)
	if err := client.CompleteSet(context.Background(), "set_1", at); err != nil {
		t.Fatalf("CompleteSet failed: %v", err)
	}
	if gotPath != "/v1/sets/set_1/complete" {
		t.Errorf("path mismatch: got %q", gotPath)
	}
}

func TestMalformedTimestampFails(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"tpl_1","name":"Push Day","created_at":"yesterday"}]`)
	})
	defer srv.Close()

	if _, err := client.ListTemplatesSince(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected parse error")
	}
}
