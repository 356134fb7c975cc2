package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

type sessionRow struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt"`
	SenderIP  string `json:"senderIp"`
}

type sessionsResponse struct {
	Sessions []sessionRow `json:"sessions"`
}

func formatSessions(sessions []sessionRow, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal sessions to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSIZE\tCREATED\tSENDER-IP")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Status, s.Size, s.CreatedAt, s.SenderIP)
		}
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

type auditEntry struct {
	Timestamp  string         `json:"Timestamp"`
	Level      string         `json:"Level"`
	Event      string         `json:"Event"`
	EndpointID string         `json:"EndpointID"`
	SessionID  string         `json:"SessionID"`
	IP         string         `json:"IP"`
	Details    map[string]any `json:"Details"`
}

type auditResponse struct {
	Entries []auditEntry `json:"entries"`
}

func formatAudit(entries []auditEntry, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal audit entries to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tLEVEL\tEVENT\tENDPOINT\tSESSION\tIP")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.Level, e.Event, e.EndpointID, e.SessionID, e.IP)
		}
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}
