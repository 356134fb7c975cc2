package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSessionListCmdFormatsTableOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/sessions" {
			t.Errorf("request path = %q, want /api/admin/sessions", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(sessionsResponse{Sessions: []sessionRow{
			{ID: "sess-1", Status: "WAITING", Size: 1024, CreatedAt: "2026-01-01T00:00:00Z", SenderIP: "203.0.113.1"},
		}})
	}))
	defer srv.Close()

	oldAddr, oldFormat := serverAddr, outputFormat
	serverAddr, outputFormat = srv.URL, formatTable
	defer func() { serverAddr, outputFormat = oldAddr, oldFormat }()

	cmd := sessionListCmd()

	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Fatalf("RunE() error: %v", err)
		}
	})

	if !strings.Contains(out, "sess-1") {
		t.Errorf("output = %q, want it to contain the session id", out)
	}
}

func TestSessionListCmdPropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	oldAddr, oldFormat := serverAddr, outputFormat
	serverAddr, outputFormat = srv.URL, formatTable
	defer func() { serverAddr, outputFormat = oldAddr, oldFormat }()

	cmd := sessionListCmd()
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("RunE() with a 500 response = nil error, want an error")
	}
}
