package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine wires the pure FSM transitions of fsm.go to the effectful
// components (Repository, Registry, Validator, Limiters, AbuseGuard,
// ConcurrencyCap, Multiplexer, Router) and guarantees that events for a
// given session id are processed one at a time (§5: "concurrent events for
// the same session MUST be serialized"). It uses a per-session mutex rather
// than a single global lock or an actor-per-session goroutine, so unrelated
// sessions never contend on the same lock.
type Engine struct {
	log *slog.Logger

	Repo       *Repository
	Registry   *Registry
	Validator  *Validator
	Mux        *Multiplexer
	Router     *Router
	Relay      *RelayCredentialMinter
	Cipher     *FieldCipher
	AbuseGuard *AbuseGuard
	Concurrent *ConcurrencyCap

	ConnLimiter   *TokenBucketLimiter
	UploadLimiter *TokenBucketLimiter
	JoinLimiter   *TokenBucketLimiter

	onAudit func(level, event, endpoint, sessionID, ip string, details map[string]any)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineConfig collects the dependencies an Engine is built from.
type EngineConfig struct {
	Logger     *slog.Logger
	Repo       *Repository
	Registry   *Registry
	Validator  *Validator
	Mux        *Multiplexer
	Relay      *RelayCredentialMinter
	Cipher     *FieldCipher
	AbuseGuard *AbuseGuard
	Concurrent *ConcurrencyCap

	ConnLimiter   *TokenBucketLimiter
	UploadLimiter *TokenBucketLimiter
	JoinLimiter   *TokenBucketLimiter

	// OnAudit, if set, receives a structured record of every significant
	// event the Engine processes (§4.O). level is one of the audit.Level
	// string values; the session package does not import internal/audit to
	// avoid a dependency cycle with the Boundary Adapter, which owns both.
	OnAudit func(level, event, endpoint, sessionID, ip string, details map[string]any)
}

// NewEngine constructs an Engine from cfg. Any nil component is replaced
// with a fresh default instance so callers may omit pieces they don't
// intend to exercise (tests, mostly).
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		log:           cfg.Logger,
		Repo:          cfg.Repo,
		Registry:      cfg.Registry,
		Validator:     cfg.Validator,
		Mux:           cfg.Mux,
		Relay:         cfg.Relay,
		Cipher:        cfg.Cipher,
		AbuseGuard:    cfg.AbuseGuard,
		Concurrent:    cfg.Concurrent,
		ConnLimiter:   cfg.ConnLimiter,
		UploadLimiter: cfg.UploadLimiter,
		JoinLimiter:   cfg.JoinLimiter,
		onAudit:       cfg.OnAudit,
		locks:         make(map[string]*sync.Mutex),
	}

	if e.log == nil {
		e.log = slog.Default()
	}
	if e.Repo == nil {
		e.Repo = NewRepository()
	}
	if e.Registry == nil {
		e.Registry = NewRegistry()
	}
	if e.Validator == nil {
		e.Validator = NewValidator()
	}
	if e.Mux == nil {
		e.Mux = NewMultiplexer()
	}
	if e.Router == nil {
		e.Router = NewRouter(e.Mux)
	}
	if e.Relay == nil {
		e.Relay = NewRelayCredentialMinter(RelayConfig{})
	}
	if e.Cipher == nil {
		e.Cipher = mustDevFieldCipher(e.log)
	}
	if e.AbuseGuard == nil {
		e.AbuseGuard = NewAbuseGuard(nil)
	}
	if e.Concurrent == nil {
		e.Concurrent = NewConcurrencyCap()
	}
	if e.ConnLimiter == nil {
		e.ConnLimiter = NewConnectionLimiter()
	}
	if e.UploadLimiter == nil {
		e.UploadLimiter = NewUploadInitLimiter()
	}
	if e.JoinLimiter == nil {
		e.JoinLimiter = NewJoinRoomLimiter()
	}
	return e
}

// mustDevFieldCipher builds a FieldCipher from a freshly generated random
// key, for callers (chiefly tests) that don't configure one explicitly.
// Production deployments MUST supply Cipher via EngineConfig, built from the
// configured METADATA_ENCRYPTION_KEY — config.Validate refuses startup
// without one, so this random fallback is never reached outside tests.
func mustDevFieldCipher(log *slog.Logger) *FieldCipher {
	key := make([]byte, fieldKeySize)
	if _, err := rand.Read(key); err != nil {
		panic("session: failed to generate development field key: " + err.Error())
	}
	fc, err := NewFieldCipher(key, log)
	if err != nil {
		panic("session: failed to construct development field cipher: " + err.Error())
	}
	return fc
}

func (e *Engine) audit(level, event, endpoint, sessionID, ip string, details map[string]any) {
	if e.onAudit != nil {
		e.onAudit(level, event, endpoint, sessionID, ip, details)
	}
}

// sessionLock returns the per-session mutex for id, creating it on first
// use. TransferComplete removes a session's lock; no other path does, so
// locks of cancelled, disconnected or swept sessions stay in the map.
func (e *Engine) sessionLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// UploadResult is returned to the sender after a successful upload-init.
type UploadResult struct {
	SessionID string
	Code      string
	Dangerous bool
	Warnings  []string
}

// UploadInit implements the upload-init inbound event (§4.J, §6): validates
// filename/size/MIME, encrypts the filename and MIME type at rest, creates
// the Repository row, registers a one-time code, and returns both to the
// sender. senderEndpoint must already be Connect-ed on the Multiplexer.
// fileHash is optional and stored verbatim (it is not sensitive metadata).
func (e *Engine) UploadInit(senderEndpoint, senderIP, filename string, size int64, mimeType, fileHash string) (UploadResult, error) {
	if d := e.UploadLimiter.Check(senderEndpoint); !d.Allowed {
		return UploadResult{}, ErrRateLimited
	}

	fv := e.Validator.Filename(filename)
	if fv.Error != nil {
		return UploadResult{}, fv.Error
	}
	if sv := e.Validator.Size(size); sv.Error != nil {
		return UploadResult{}, sv.Error
	}
	mv := e.Validator.MIMEType(mimeType)
	if mv.Error != nil {
		return UploadResult{}, mv.Error
	}

	if cd := e.Concurrent.Check(senderIP); !cd.Allowed {
		return UploadResult{}, cd.Reason
	}

	encName, err := e.Cipher.Encrypt(fv.Sanitized)
	if err != nil {
		e.Concurrent.Decrement(senderIP)
		return UploadResult{}, fmt.Errorf("encrypt filename: %w", err)
	}
	encType, err := e.Cipher.Encrypt(mimeType)
	if err != nil {
		e.Concurrent.Decrement(senderIP)
		return UploadResult{}, fmt.Errorf("encrypt mime type: %w", err)
	}

	id, err := e.Repo.Create(encName, size, encType, senderIP, fileHash, "")
	if err != nil {
		e.Concurrent.Decrement(senderIP)
		return UploadResult{}, err
	}

	lock := e.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	code, err := e.Registry.Register(id, senderEndpoint)
	if err != nil {
		_ = e.Repo.Delete(id)
		e.Concurrent.Decrement(senderIP)
		return UploadResult{}, err
	}

	result := ApplyEvent(StateNone, EventUploadInit)
	e.audit("INFO", "upload-init", senderEndpoint, id, senderIP, map[string]any{
		"size": size, "mime_dangerous": mv.Dangerous, "state": result.NewState.String(),
	})

	var warnings []string
	if fv.Warning != "" {
		warnings = append(warnings, fv.Warning)
	}
	if mv.Warning != "" {
		warnings = append(warnings, mv.Warning)
	}

	return UploadResult{SessionID: id, Code: code, Dangerous: mv.Dangerous, Warnings: warnings}, nil
}

// JoinResult carries what the Engine resolved for a join-room attempt, for
// the Boundary Adapter to translate into outbound WS events.
type JoinResult struct {
	Filename    string // decrypted, for display
	MIMEType    string
	Size        int64
	FileHash    string
	Dangerous   bool
	SenderID    string
	AlreadyUsed bool
}

// JoinRoom implements the join-room inbound event (§4.J, §6): checks the
// per-endpoint join-room limiter and the one-time code, then on success joins the
// receiver to the room and transitions WAITING->ACTIVE.
func (e *Engine) JoinRoom(joinerEndpoint, joinerIP, sessionID, code string) (JoinResult, error) {
	if d := e.JoinLimiter.Check(joinerEndpoint); !d.Allowed {
		return JoinResult{}, ErrRateLimited
	}

	row, ok := e.Repo.Find(sessionID)
	if !ok {
		return JoinResult{}, ErrNotFound
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state := StatusToState(row.Status)

	if state == StateCompleted {
		ApplyEvent(state, EventJoinRoomAlreadyDownloaded)
		e.audit("WARN", "join-room-already-downloaded", joinerEndpoint, sessionID, joinerIP, nil)
		return JoinResult{AlreadyUsed: true}, ErrAlreadyDownloaded
	}

	if err := e.Registry.ValidateCode(sessionID, code); err != nil {
		ApplyEvent(state, EventJoinRoomInvalidCode)
		e.AbuseGuard.Suspicious(joinerIP, "invalid-code")
		e.audit("SECURITY", "join-room-invalid-code", joinerEndpoint, sessionID, joinerIP, nil)
		return JoinResult{}, err
	}

	sender, ok := e.Registry.Sender(sessionID)
	if !ok {
		return JoinResult{}, ErrNoSender
	}

	result := ApplyEvent(state, EventJoinRoomOK)
	if err := e.Repo.SetStatus(sessionID, StatusActive); err != nil {
		return JoinResult{}, err
	}
	e.Mux.Join(joinerEndpoint, sessionID)
	e.Mux.Join(sender, sessionID)

	e.audit("INFO", "join-room", joinerEndpoint, sessionID, joinerIP, map[string]any{
		"state": result.NewState.String(),
	})

	mimeType := e.Cipher.Decrypt(row.EncryptedType)

	return JoinResult{
		Filename:  e.Cipher.Decrypt(row.EncryptedName),
		MIMEType:  mimeType,
		Size:      row.Size,
		FileHash:  row.FileHash,
		Dangerous: e.Validator.MIMEType(mimeType).Dangerous,
		SenderID:  sender,
	}, nil
}

// Signal implements the signal inbound event (§4.L): relays an opaque
// signaling payload between two endpoints already in the same room. The
// Engine never inspects the payload; it only authorizes the relay.
func (e *Engine) Signal(from, to, sessionID string) (ok bool, reason DropReason) {
	return e.Router.Relay(from, to, sessionID)
}

// CancelTransfer implements the cancel-transfer inbound event (§4.J):
// transitions the session to TERMINATED and reports the peer endpoint to
// notify, if any.
func (e *Engine) CancelTransfer(requester, sessionID string) (peers []string, err error) {
	row, ok := e.Repo.Find(sessionID)
	if !ok {
		return nil, ErrNotFound
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state := StatusToState(row.Status)
	result := ApplyEvent(state, EventCancelTransfer)

	peerMap := e.Mux.PeersOf(requester)
	peers = peerMap[sessionID]

	e.Registry.Remove(sessionID)
	_ = e.Repo.Delete(sessionID)
	e.Concurrent.Decrement(row.SenderIP)

	e.audit("INFO", "cancel-transfer", requester, sessionID, "", map[string]any{
		"state": result.NewState.String(),
	})

	return peers, nil
}

// TransferComplete implements the transfer-complete inbound event (§4.J):
// per the resolved delete-on-complete Open Question, the row, registry
// entry, and per-session lock are all removed on the first transfer-complete
// received; no confirmation from the other side is awaited.
func (e *Engine) TransferComplete(reporter, sessionID string) error {
	row, ok := e.Repo.Find(sessionID)
	if !ok {
		return ErrNotFound
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	state := StatusToState(row.Status)
	ApplyEvent(state, EventTransferComplete)

	e.Registry.Remove(sessionID)
	_ = e.Repo.Delete(sessionID)
	e.Concurrent.Decrement(row.SenderIP)
	lock.Unlock()

	e.mu.Lock()
	delete(e.locks, sessionID)
	e.mu.Unlock()

	e.audit("INFO", "transfer-complete", reporter, sessionID, "", nil)
	return nil
}

// ConnectResult is the outcome of AcceptConnection.
type ConnectResult struct {
	Allowed               bool
	Err                   error
	BlockRemainingMinutes int
}

// AcceptConnection implements the connection-accept gate of §4.M: the Abuse
// Guard runs before the connection limiter, in that order. On success the
// endpoint is registered with the Multiplexer under its peer IP.
func (e *Engine) AcceptConnection(endpoint, ip string) ConnectResult {
	cd := e.AbuseGuard.TrackConnection(ip)
	if !cd.Allowed {
		if cd.Blocked {
			minutes := int(cd.BlockRemaining / time.Minute)
			if cd.BlockRemaining%time.Minute != 0 {
				minutes++
			}
			e.audit("SECURITY", "connection-blocked", endpoint, "", ip, map[string]any{"remaining_minutes": minutes})
			return ConnectResult{Err: ErrBlocked, BlockRemainingMinutes: minutes}
		}
		e.audit("WARN", "connection-soft-limited", endpoint, "", ip, nil)
		return ConnectResult{Err: ErrBlocked}
	}

	if ld := e.ConnLimiter.Check(ip); !ld.Allowed {
		return ConnectResult{Err: ErrRateLimited}
	}

	e.Mux.Connect(endpoint, ip)
	return ConnectResult{Allowed: true}
}

// Disconnect implements the endpoint-disconnect path (§4.K): for every
// session the endpoint was joined to, applies the sender-recovery behavior
// (reset to WAITING, or drop an unclaimed registration) and returns the
// peer effects the Boundary Adapter must notify.
func (e *Engine) Disconnect(endpoint string) []DisconnectEffect {
	// Mux.Disconnect below deletes the endpoint's entry, so its IP must be
	// read beforehand — afterward Mux.IP(endpoint) only ever returns "".
	ip, _ := e.Mux.IP(endpoint)

	isSender := func(id string) bool { return e.Registry.IsSender(id, endpoint) }
	status := func(id string) (Status, bool) {
		row, ok := e.Repo.Find(id)
		if !ok {
			return "", false
		}
		return row.Status, true
	}

	effects := e.Mux.Disconnect(endpoint, isSender, status)

	for _, eff := range effects {
		lock := e.sessionLock(eff.SessionID)
		lock.Lock()
		switch {
		case eff.ResetToWaiting:
			_ = e.Repo.SetStatus(eff.SessionID, StatusWaiting)
		case eff.DropRegistry:
			if row, ok := e.Repo.Find(eff.SessionID); ok {
				e.Concurrent.Decrement(row.SenderIP)
			}
			e.Registry.Remove(eff.SessionID)
			_ = e.Repo.Delete(eff.SessionID)
		}
		lock.Unlock()
	}

	e.AbuseGuard.TrackDisconnect(ip)
	return effects
}

// Sweep runs the periodic maintenance pass described in §4.N: evicts
// registrations and rows older than maxAge, and lets the AbuseGuard clear
// expired blocks/idle trackers. Returns counts for logging/metrics.
func (e *Engine) Sweep(maxAge time.Duration) (rows, registrations int) {
	reaped := e.Repo.DeleteOlderThan(time.Now().Add(-maxAge), StatusWaiting, StatusCompleted)
	for _, row := range reaped {
		e.Concurrent.Decrement(row.SenderIP)
	}
	registrations = e.Registry.PurgeOlderThan(maxAge)
	e.AbuseGuard.Cleanup()
	return len(reaped), registrations
}

// Close stops the background sweep goroutines owned by the three
// Token-Bucket Limiters. Callers should invoke this once during shutdown.
func (e *Engine) Close() {
	e.ConnLimiter.Close()
	e.UploadLimiter.Close()
	e.JoinLimiter.Close()
}
