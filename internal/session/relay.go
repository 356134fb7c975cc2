package session

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the TURN REST API credential mechanism (RFC draft-uberti-behave-turn-rest), not used for confidentiality.
	"encoding/base64"
	"fmt"
	"time"
)

// DefaultRelayCredentialTTL is the default time-limited credential lifetime
// of §4.I.
const DefaultRelayCredentialTTL = 24 * time.Hour

// ICEServer is a single connectivity-establishment server entry returned by
// the /api/ice-servers endpoint (§6).
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RelayConfig describes the external TURN relay, if configured (§6 env vars
// TURN_SERVER, TURN_SECRET, TURNS_ENABLED).
type RelayConfig struct {
	STUNURL   string
	TURNHost  string // host:port, UDP/TCP
	TURNSHost string // host:port, TLS, only used when TLS is enabled
	Secret    string
	TLS       bool
	TTL       time.Duration
}

// RelayCredentialMinter mints time-limited HMAC-derived TURN credentials
// (§4.I) using the standard TURN REST API convention: an expiry-timestamped
// username signed with HMAC-SHA1 under the shared secret.
type RelayCredentialMinter struct {
	cfg   RelayConfig
	clock func() time.Time
}

// NewRelayCredentialMinter constructs a minter for the given relay
// configuration. cfg.Secret == "" means no relay is configured.
func NewRelayCredentialMinter(cfg RelayConfig) *RelayCredentialMinter {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRelayCredentialTTL
	}
	if cfg.STUNURL == "" {
		cfg.STUNURL = "stun:stun.l.google.com:19302"
	}
	return &RelayCredentialMinter{cfg: cfg, clock: time.Now}
}

func (m *RelayCredentialMinter) withClock(clock func() time.Time) *RelayCredentialMinter {
	m.clock = clock
	return m
}

// mint computes username = "<unix-expiry>:<user-tag>" and credential =
// base64(HMAC-SHA1(secret, username)) per §4.I.
func (m *RelayCredentialMinter) mint(userTag string) (username, credential string, err error) {
	expiry := m.clock().Add(m.cfg.TTL).Unix()
	username = fmt.Sprintf("%d:%s", expiry, userTag)

	mac := hmac.New(sha1.New, []byte(m.cfg.Secret))
	if _, err := mac.Write([]byte(username)); err != nil {
		return "", "", err
	}

	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, credential, nil
}

// ICEServers returns the full connectivity-establishment server list of §4.I
// and §6: always a public STUN entry; additionally STUN+TURN (UDP/TCP) with
// minted credentials when a relay is configured; additionally a TLS TURN
// entry when enabled. If credential generation fails for any reason, the
// minter falls back to the STUN-only default rather than refusing the
// request — never hold up the caller's /api/ice-servers response on a
// transient HMAC failure.
func (m *RelayCredentialMinter) ICEServers(userTag string) []ICEServer {
	servers := []ICEServer{{URLs: []string{m.cfg.STUNURL}}}

	if m.cfg.Secret == "" || m.cfg.TURNHost == "" {
		return servers
	}

	username, credential, err := m.mint(userTag)
	if err != nil {
		return servers
	}

	servers = append(servers,
		ICEServer{URLs: []string{"stun:" + m.cfg.TURNHost}},
		ICEServer{
			URLs:       []string{"turn:" + m.cfg.TURNHost + "?transport=udp", "turn:" + m.cfg.TURNHost + "?transport=tcp"},
			Username:   username,
			Credential: credential,
		},
	)

	if m.cfg.TLS && m.cfg.TURNSHost != "" {
		servers = append(servers, ICEServer{
			URLs:       []string{"turns:" + m.cfg.TURNSHost + "?transport=tcp"},
			Username:   username,
			Credential: credential,
		})
	}

	return servers
}
