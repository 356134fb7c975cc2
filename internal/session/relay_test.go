package session_test

import (
	"testing"

	"github.com/dropvault/signalcore/internal/session"
)

func TestRelayCredentialMinterStunOnlyWhenUnconfigured(t *testing.T) {
	t.Parallel()

	m := session.NewRelayCredentialMinter(session.RelayConfig{})
	servers := m.ICEServers("user-1")

	if len(servers) != 1 {
		t.Fatalf("ICEServers() with no relay configured = %d entries, want 1 (STUN only)", len(servers))
	}
	if servers[0].Username != "" || servers[0].Credential != "" {
		t.Errorf("ICEServers() STUN-only entry = %+v, want no credentials", servers[0])
	}
}

func TestRelayCredentialMinterAddsTurnWhenConfigured(t *testing.T) {
	t.Parallel()

	m := session.NewRelayCredentialMinter(session.RelayConfig{
		TURNHost: "turn.example.com:3478",
		Secret:   "shared-secret",
	})
	servers := m.ICEServers("user-1")

	if len(servers) != 3 {
		t.Fatalf("ICEServers() with a relay configured = %d entries, want 3 (STUN, STUN-at-relay, TURN)", len(servers))
	}

	turn := servers[2]
	if turn.Username == "" || turn.Credential == "" {
		t.Errorf("ICEServers() TURN entry = %+v, want minted credentials", turn)
	}
}

func TestRelayCredentialMinterAddsTLSEntryWhenEnabled(t *testing.T) {
	t.Parallel()

	m := session.NewRelayCredentialMinter(session.RelayConfig{
		TURNHost:  "turn.example.com:3478",
		TURNSHost: "turn.example.com:5349",
		Secret:    "shared-secret",
		TLS:       true,
	})
	servers := m.ICEServers("user-1")

	if len(servers) != 4 {
		t.Fatalf("ICEServers() with TLS enabled = %d entries, want 4", len(servers))
	}

	last := servers[3]
	if len(last.URLs) != 1 || last.URLs[0] != "turns:turn.example.com:5349?transport=tcp" {
		t.Errorf("ICEServers() TLS entry URLs = %v, want a single turns: URL", last.URLs)
	}
}

func TestRelayCredentialMinterCredentialsDifferPerUserTag(t *testing.T) {
	t.Parallel()

	m := session.NewRelayCredentialMinter(session.RelayConfig{
		TURNHost: "turn.example.com:3478",
		Secret:   "shared-secret",
	})

	a := m.ICEServers("user-a")[2]
	b := m.ICEServers("user-b")[2]

	if a.Username == b.Username {
		t.Error("ICEServers() minted the same username for two different user tags")
	}
	if a.Credential == b.Credential {
		t.Error("ICEServers() minted the same credential for two different user tags")
	}
}
