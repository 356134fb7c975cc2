// Package session implements the signaling and session-coordination core of
// the file transfer service: session metadata, field encryption, validation,
// rate limiting, abuse protection, one-time codes, the in-memory registry,
// relay credential minting, the per-session state machine, the endpoint
// multiplexer, the message router, and the periodic sweeper.
package session
