package session

// DropReason records why a relay attempt was silently dropped (§4.L, §9).
// The router never surfaces these to the originating endpoint — exposing
// them would leak the existence of sessions and endpoints to scanners.
type DropReason string

const (
	DropReasonSenderNotInRoom DropReason = "from-not-in-room"
	DropReasonTargetOffline   DropReason = "target-not-connected"
	DropReasonTargetNotInRoom DropReason = "target-not-in-room"
)

// Router implements the point-to-point relay of §4.L: `from` must be in
// `session`'s room, `to` must be currently connected, and `to` must be in
// the same room. Each failure is a distinct silent drop. The Router never
// inspects the relayed payload.
type Router struct {
	mux *Multiplexer
}

// NewRouter constructs a Router bound to the given Multiplexer.
func NewRouter(mux *Multiplexer) *Router {
	return &Router{mux: mux}
}

// Relay checks the dual room-membership invariant and reports whether the
// message may be forwarded. On failure it returns the reason for the
// caller's audit trail (§8 scenario 4); the caller MUST NOT emit anything
// to `from` when a failure is returned.
func (r *Router) Relay(from, to, sessionID string) (ok bool, reason DropReason) {
	if !r.mux.InRoom(from, sessionID) {
		return false, DropReasonSenderNotInRoom
	}
	if !r.mux.Connected(to) {
		return false, DropReasonTargetOffline
	}
	if !r.mux.InRoom(to, sessionID) {
		return false, DropReasonTargetNotInRoom
	}
	return true, ""
}
