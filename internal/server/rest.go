package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropvault/signalcore/internal/audit"
)

// auditLevelFromQuery maps a case-insensitive ?level= value to an
// audit.Level, defaulting to INFO for unrecognized input.
func auditLevelFromQuery(raw string) audit.Level {
	switch strings.ToUpper(raw) {
	case "WARN":
		return audit.LevelWarn
	case "ERROR":
		return audit.LevelError
	case "SECURITY":
		return audit.LevelSecurity
	default:
		return audit.LevelInfo
	}
}

// handleHealthz reports liveness: the process is up and able to respond.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports readiness: the Engine and its Repository are wired
// and reachable. Since the reference Repository is in-memory this is
// effectively always ready once New has returned, but the shape matches
// what a real backing store's health check would report.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, `{"status":"not-ready"}`, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// handleICEServers implements GET /api/ice-servers (§4.I, §6): mints
// time-limited TURN credentials tagged to the caller's IP and returns the
// full connectivity-establishment server list.
func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	servers := s.engine.Relay.ICEServers(ip)
	if s.metrics != nil && len(servers) > 1 {
		s.metrics.IncRelayCredentialsMinted()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"iceServers": servers})
}

// adminSessionView is the admin-facing projection of a repository row: no
// plaintext filename/MIME type is ever exposed here either, since the
// session package never decrypts on the Repository's behalf.
type adminSessionView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt"`
	SenderIP  string `json:"senderIp"`
}

// handleAdminSessions implements GET /api/admin/sessions (§4.O): a snapshot
// of every live repository row, for operator visibility.
func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	rows := s.engine.Repo.All()
	views := make([]adminSessionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, adminSessionView{
			ID:        row.ID,
			Status:    string(row.Status),
			Size:      row.Size,
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
			SenderIP:  row.SenderIP,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sessions": views})
}

// handleAdminAudit implements GET /api/admin/audit (§4.O): the most recent
// n audit entries (default 100, capped at 1000), optionally filtered to a
// single level via ?level=.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": []struct{}{}})
		return
	}

	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			n = parsed
		}
	}

	var entries any
	if level := r.URL.Query().Get("level"); level != "" {
		entries = s.audit.LastNByLevel(n, auditLevelFromQuery(level))
	} else {
		entries = s.audit.LastN(n)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}
