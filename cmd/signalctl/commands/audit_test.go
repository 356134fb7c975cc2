package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuditCmdFiltersByLevelQueryParam(t *testing.T) {
	var gotLevel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLevel = r.URL.Query().Get("level")
		_ = json.NewEncoder(w).Encode(auditResponse{Entries: []auditEntry{
			{Timestamp: "2026-01-01T00:00:00Z", Level: "SECURITY", Event: "blocked", IP: "203.0.113.1"},
		}})
	}))
	defer srv.Close()

	oldAddr, oldFormat := serverAddr, outputFormat
	serverAddr, outputFormat = srv.URL, formatJSON
	defer func() { serverAddr, outputFormat = oldAddr, oldFormat }()

	cmd := auditCmd()
	if err := cmd.Flags().Set("level", "security"); err != nil {
		t.Fatalf("set level flag: %v", err)
	}

	out := captureStdout(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Fatalf("RunE() error: %v", err)
		}
	})

	if gotLevel != "security" {
		t.Errorf("request level query = %q, want %q", gotLevel, "security")
	}
	if !strings.Contains(out, "blocked") {
		t.Errorf("output = %q, want it to contain the audit event", out)
	}
}

func TestAuditCmdDefaultsNTo100(t *testing.T) {
	var gotN string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotN = r.URL.Query().Get("n")
		_ = json.NewEncoder(w).Encode(auditResponse{})
	}))
	defer srv.Close()

	oldAddr, oldFormat := serverAddr, outputFormat
	serverAddr, outputFormat = srv.URL, formatJSON
	defer func() { serverAddr, outputFormat = oldAddr, oldFormat }()

	cmd := auditCmd()
	captureStdout(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Fatalf("RunE() error: %v", err)
		}
	})

	if gotN != "100" {
		t.Errorf("request n query = %q, want %q", gotN, "100")
	}
}
