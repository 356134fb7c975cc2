package server

import (
	"encoding/json"

	"github.com/dropvault/signalcore/internal/session"
)

// handleUploadInit implements the upload-init inbound event (§4.J, §6):
// decode, hand off to the Engine, and translate the result into
// upload-created or error on conn.
func (s *Server) handleUploadInit(conn *endpointConn, env inboundEnvelope) {
	var p uploadInitPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.sendError(conn, session.ErrEmptyFilename, false)
		return
	}

	size, err := parseSize(p.FileSize)
	if err != nil {
		s.sendError(conn, session.ErrSizeOutOfRange, false)
		return
	}

	result, err := s.engine.UploadInit(conn.id, conn.ip, p.FileName, size, p.FileType, p.FileHash)
	if err != nil {
		s.sendError(conn, err, false)
		return
	}

	conn.enqueue("upload-created", uploadCreatedPayload{
		FileID:      result.SessionID,
		OneTimeCode: result.Code,
		Dangerous:   result.Dangerous,
		Warnings:    result.Warnings,
	})
}

// handleJoinRoom implements the join-room inbound event (§4.J, §6): on
// success the joiner receives file-meta and the sender receives
// receiver-joined; on failure only the joiner receives an error, with
// InvalidCode set when the failure was an invalid/used/absent code.
func (s *Server) handleJoinRoom(conn *endpointConn, env inboundEnvelope) {
	var p joinRoomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.sendError(conn, session.ErrInvalidSessionID, false)
		return
	}

	result, err := s.engine.JoinRoom(conn.id, conn.ip, p.FileID, p.Code)
	if err != nil {
		invalidCode := session.ClassifyError(err) == session.KindInvalidCode
		s.sendError(conn, err, invalidCode)
		return
	}

	conn.enqueue("file-meta", fileMetaPayload{
		FileName:    result.Filename,
		FileSize:    formatSize(result.Size),
		FileType:    result.MIMEType,
		FileHash:    result.FileHash,
		IsDangerous: result.Dangerous,
	})

	if sender, ok := s.findConn(result.SenderID); ok {
		sender.enqueue("receiver-joined", receiverJoinedPayload{ReceiverID: conn.id})
	}
}

// handleSignal implements the signal inbound event (§4.L, §6): the Engine
// only authorizes the relay, the Boundary Adapter forwards the opaque
// payload verbatim to the target. A failed authorization is a silent drop —
// §4.L forbids surfacing the reason to the sender.
func (s *Server) handleSignal(conn *endpointConn, env inboundEnvelope) {
	var p signalPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}

	ok, _ := s.engine.Signal(conn.id, p.Target, p.FileID)
	if !ok {
		return
	}

	target, found := s.findConn(p.Target)
	if !found {
		return
	}

	target.enqueue("signal", signalOutPayload{From: conn.id, Data: p.Data})
}

// handleCancelTransfer implements the cancel-transfer inbound event (§4.J):
// the session is torn down and every peer the requester shared it with is
// notified.
func (s *Server) handleCancelTransfer(conn *endpointConn, env inboundEnvelope) {
	var p cancelTransferPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}

	peers, err := s.engine.CancelTransfer(conn.id, p.FileID)
	if err != nil {
		s.sendError(conn, err, false)
		return
	}

	for _, id := range peers {
		if peer, ok := s.findConn(id); ok {
			peer.enqueue("transfer-cancelled", transferCancelledPayload{Reason: p.Reason})
		}
	}
}

// handleTransferComplete implements the transfer-complete inbound event
// (§4.J): no outbound event is emitted per §6, the session is simply torn
// down server-side as soon as either endpoint reports completion.
func (s *Server) handleTransferComplete(conn *endpointConn, env inboundEnvelope) {
	var p transferCompletePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}

	if err := s.engine.TransferComplete(conn.id, p.FileID); err != nil {
		s.sendError(conn, err, false)
	}
}
