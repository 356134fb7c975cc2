package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// outboundQueueSize bounds the per-connection outbound buffer. §5 only
// promises in-order delivery of what the server enqueues, not unbounded
// retransmission — once a stalled client's buffer is full, further frames
// to it are dropped rather than letting one slow reader back-pressure the
// whole process; the connection itself stays open.
const outboundQueueSize = 64

// writeWait bounds a single frame write, following the standard
// gorilla/websocket ping/pong keepalive discipline.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// endpointConn is one live Boundary Adapter connection (§4.M, §3 "Endpoint
// session"): a single reader goroutine decoding inbound events and a single
// writer goroutine draining the outbound queue, matching gorilla/websocket's
// one-writer-at-a-time requirement.
type endpointConn struct {
	id  string
	ip  string
	ws  *websocket.Conn
	log *slog.Logger

	send chan outboundEnvelope
	done chan struct{}
}

func newEndpointConn(id, ip string, ws *websocket.Conn, log *slog.Logger) *endpointConn {
	return &endpointConn{
		id:   id,
		ip:   ip,
		ws:   ws,
		log:  log,
		send: make(chan outboundEnvelope, outboundQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue attempts a non-blocking send; a full queue means the client has
// fallen behind and the frame is dropped rather than blocking the caller —
// outbound events are documented as at-most-once (§4.M).
func (c *endpointConn) enqueue(event string, data any) {
	select {
	case c.send <- outboundEnvelope{Event: event, Data: data}:
	default:
		c.log.Warn("outbound queue full, dropping frame", "endpoint", c.id, "event", event)
	}
}

// writePump drains the outbound queue onto the socket until closed.
func (c *endpointConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump blocks reading inbound frames, dispatching each to handle, until
// the socket closes or an unrecoverable read error occurs.
func (c *endpointConn) readPump(handle func(inboundEnvelope)) {
	defer close(c.done)

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("malformed inbound frame, dropping", "endpoint", c.id, "error", err)
			continue
		}
		handle(env)
	}
}

func (c *endpointConn) close() {
	close(c.send)
}
