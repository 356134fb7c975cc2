package session

import "sync"

// endpointEntry is the volatile §3 "Endpoint session": peer IP and the set
// of joined session ids.
type endpointEntry struct {
	ip       string
	sessions map[string]struct{}
}

// DisconnectEffect describes what the Multiplexer determined must happen
// for one joined session when its endpoint disconnects (§4.K), for the
// Engine to execute against the Repository and Registry.
type DisconnectEffect struct {
	SessionID     string
	NotifyPeer    bool
	ResetToWaiting bool // disconnecting endpoint was the ACTIVE session's sender
	DropRegistry  bool // disconnecting endpoint was the WAITING session's sender
}

// Multiplexer tracks each endpoint's room memberships (§4.K). Keys
// (endpoint ids) are independent of one another, so a single RWMutex
// guards the whole map — the same trade-off as the Registry.
type Multiplexer struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointEntry
}

// NewMultiplexer constructs an empty Multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{endpoints: make(map[string]*endpointEntry)}
}

// Connect registers a newly connected endpoint with its peer IP.
func (m *Multiplexer) Connect(endpoint string, ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[endpoint]; ok {
		return
	}
	m.endpoints[endpoint] = &endpointEntry{ip: ip, sessions: make(map[string]struct{})}
}

// Join adds session id to endpoint's room set (§3: "an endpoint is in at
// most one room per session" — Join is idempotent for a given pair).
func (m *Multiplexer) Join(endpoint string, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.endpoints[endpoint]
	if !ok {
		return
	}
	e.sessions[id] = struct{}{}
}

// InRoom reports whether endpoint is currently a member of session id's
// room — the authorization primitive §4.L relies on.
func (m *Multiplexer) InRoom(endpoint string, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.endpoints[endpoint]
	if !ok {
		return false
	}
	_, inRoom := e.sessions[id]
	return inRoom
}

// Connected reports whether endpoint currently has a live connection.
func (m *Multiplexer) Connected(endpoint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.endpoints[endpoint]
	return ok
}

// IP returns the peer IP recorded for endpoint, if connected.
func (m *Multiplexer) IP(endpoint string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[endpoint]
	if !ok {
		return "", false
	}
	return e.ip, true
}

// PeersOf returns, per joined session id, the peer endpoint ids currently
// sharing that room with endpoint — at most one, per §3's practical bound
// of two endpoints per session.
func (m *Multiplexer) PeersOf(endpoint string) map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]string)
	e, ok := m.endpoints[endpoint]
	if !ok {
		return result
	}

	for sid := range e.sessions {
		for other, oe := range m.endpoints {
			if other == endpoint {
				continue
			}
			if _, joined := oe.sessions[sid]; joined {
				result[sid] = append(result[sid], other)
			}
		}
	}
	return result
}

// Disconnect removes endpoint entirely and returns the list of sessions it
// was joined to, in no particular order, so the Engine can apply the
// recovery behavior of §4.K for each. isSender/status let the
// Multiplexer decide ResetToWaiting/DropRegistry without importing the
// Registry or Repository types directly.
func (m *Multiplexer) Disconnect(endpoint string, isSender func(id string) bool, status func(id string) (Status, bool)) []DisconnectEffect {
	m.mu.Lock()
	e, ok := m.endpoints[endpoint]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	delete(m.endpoints, endpoint)
	m.mu.Unlock()

	effects := make([]DisconnectEffect, 0, len(ids))
	for _, id := range ids {
		eff := DisconnectEffect{SessionID: id, NotifyPeer: true}

		if isSender(id) {
			if st, ok := status(id); ok {
				switch st {
				case StatusActive:
					eff.ResetToWaiting = true
				case StatusWaiting:
					eff.DropRegistry = true
				}
			}
		}

		effects = append(effects, eff)
	}
	return effects
}
