package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dropvault/signalcore/internal/session"
)

// upgrader configures the WebSocket handshake. Origin checking is left to
// the CORS middleware in front of the HTTP mux — the handshake itself
// accepts any origin the mux already let through.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS implements the per-endpoint connection lifecycle of §4.M:
// connection accept is gated by the Abuse Guard and connection limiter, in
// that order; a rejected connection gets a best-effort error event and is
// closed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "ip", ip)
		return
	}

	endpointID := uuid.New().String()

	result := s.engine.AcceptConnection(endpointID, ip)
	if !result.Allowed {
		_ = ws.WriteJSON(outboundEnvelope{
			Event: "error",
			Data:  errorPayload{Message: connectErrorMessage(result)},
		})
		_ = ws.Close()
		return
	}

	conn := newEndpointConn(endpointID, ip, ws, s.log)

	s.connsMu.Lock()
	s.conns[endpointID] = conn
	s.connsMu.Unlock()

	s.log.Info("endpoint connected", "endpoint", endpointID, "ip", ip)

	go conn.writePump()
	s.readLoop(conn)
}

func connectErrorMessage(result session.ConnectResult) string {
	if result.BlockRemainingMinutes > 0 {
		return "blocked: try again in a few minutes"
	}
	return "connection rejected"
}

// readLoop runs the connection's read pump inline (blocking until the
// socket closes) and performs the disconnect cleanup of §4.K afterward.
func (s *Server) readLoop(conn *endpointConn) {
	conn.readPump(func(env inboundEnvelope) {
		s.dispatch(conn, env)
	})

	s.connsMu.Lock()
	delete(s.conns, conn.id)
	s.connsMu.Unlock()

	conn.close()

	effects := s.engine.Disconnect(conn.id)
	for _, eff := range effects {
		if !eff.NotifyPeer {
			continue
		}
		s.notifyPeersOfDisconnect(conn.id, eff.SessionID)
	}

	s.log.Info("endpoint disconnected", "endpoint", conn.id)
}

// notifyPeersOfDisconnect emits transfer-cancelled to any endpoint still
// connected that shared eff.SessionID with the endpoint that just
// disconnected. The Multiplexer has already dropped the room by the time
// this runs (§4.K: "all multiplexer state MUST be torn down before the
// abuse guard's disconnect hook is invoked"), so peers are found by the
// best-effort local connection table rather than Mux.PeersOf.
func (s *Server) notifyPeersOfDisconnect(disconnected, sessionID string) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	for id, c := range s.conns {
		if id == disconnected {
			continue
		}
		if s.engine.Registry.IsSender(sessionID, id) || s.engine.Mux.InRoom(id, sessionID) {
			c.enqueue("transfer-cancelled", transferCancelledPayload{Reason: "peer-disconnected"})
		}
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host := r.RemoteAddr
	if i := lastColon(host); i >= 0 {
		return host[:i]
	}
	return host
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

// dispatch decodes and handles one inbound event per §6, translating engine
// results into outbound events on conn (and, for relay/cancel, on the peer).
func (s *Server) dispatch(conn *endpointConn, env inboundEnvelope) {
	switch env.Event {
	case "upload-init":
		s.handleUploadInit(conn, env)
	case "join-room":
		s.handleJoinRoom(conn, env)
	case "signal":
		s.handleSignal(conn, env)
	case "cancel-transfer":
		s.handleCancelTransfer(conn, env)
	case "transfer-complete":
		s.handleTransferComplete(conn, env)
	default:
		s.log.Warn("unknown inbound event", "endpoint", conn.id, "event", env.Event)
	}
}

func (s *Server) sendError(conn *endpointConn, err error, invalidCode bool) {
	kind := session.ClassifyError(err)
	conn.enqueue("error", errorPayload{Message: string(kind), InvalidCode: invalidCode})
}

// findConn returns the live connection for endpoint id, if any.
func (s *Server) findConn(id string) (*endpointConn, bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	c, ok := s.conns[id]
	return c, ok
}
