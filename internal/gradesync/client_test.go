package gradesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGradesChangedSendsNotice(t *testing.T) {
	var got Notice
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/grades/recalculate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode notice: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "apikey", 3*time.Second, nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	if err := client.GradesChanged(context.Background(), "forum", 1, 42); err != nil {
		t.Fatalf("GradesChanged: %v", err)
	}
	if gotKey != "apikey" {
		t.Fatalf("X-API-Key = %q, want apikey", gotKey)
	}
	if got.Component != "forum" || got.ContextID != 1 || got.UserID != 42 {
		t.Fatalf("notice = %+v", got)
	}
}

func TestGradesChangedStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		rejected bool
	}{
		{"accepted", http.StatusAccepted, false, false},
		{"ok", http.StatusOK, false, false},
		{"unauthorized", http.StatusUnauthorized, true, true},
		{"unprocessable", http.StatusUnprocessableEntity, true, true},
		{"server error", http.StatusInternalServerError, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := NewHTTPClient(server.URL, "", 3*time.Second, nil)
			if err != nil {
				t.Fatalf("create client: %v", err)
			}

			err = client.GradesChanged(context.Background(), "forum", 1, 42)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.rejected != errors.Is(err, ErrRejected) {
				t.Fatalf("ErrRejected = %v, want %v (err %v)", errors.Is(err, ErrRejected), tt.rejected, err)
			}
		})
	}
}

func TestGradesChangedContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server detects the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := client.GradesChanged(ctx, "forum", 1, 42); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
