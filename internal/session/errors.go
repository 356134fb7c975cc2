package session

import "errors"

// Sentinel errors for the Session Repository (A) and Registry (H).
var (
	// ErrNotFound indicates no session exists for the given id, or the id
	// is otherwise unknown to the caller.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyDownloaded indicates the session's repository row is already
	// COMPLETED; a join-room attempt against it is rejected.
	ErrAlreadyDownloaded = errors.New("session already downloaded")

	// ErrInvalidStatusTransition indicates an attempted setStatus transition
	// is not permitted (COMPLETED cannot move back to ACTIVE).
	ErrInvalidStatusTransition = errors.New("invalid session status transition")

	// ErrStoreUnavailable indicates the repository's backing store could not
	// be reached. Callers may retry at their discretion.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrNoSender indicates the registry has no sender endpoint recorded for
	// a session (the sender disconnected, or the session never had one).
	ErrNoSender = errors.New("sender offline")

	// ErrCodeUsed indicates a one-time code was already consumed.
	ErrCodeUsed = errors.New("code already used")

	// ErrCodeMismatch indicates a presented code does not match the stored one.
	ErrCodeMismatch = errors.New("code mismatch")

	// ErrCodeAbsent indicates no code is registered for the session.
	ErrCodeAbsent = errors.New("no code registered for session")
)

// Sentinel errors for the Validator (C).
var (
	ErrEmptyFilename     = errors.New("filename must not be empty")
	ErrFilenameSanitized = errors.New("filename empty after sanitization")
	ErrSizeOutOfRange    = errors.New("file size must be > 0 and <= 100 GiB")
	ErrEmptyMIMEType     = errors.New("mime type must not be empty")
	ErrInvalidSessionID  = errors.New("session id is not a valid identifier")
	ErrEmptyEndpointID   = errors.New("endpoint id must not be empty")
)

// Sentinel errors for the Concurrency Cap (F).
var (
	ErrConcurrencyCapped = errors.New("concurrent session limit reached for this address")
	ErrHourlyCapped      = errors.New("hourly session creation limit reached for this address")
)

// Sentinel errors for the Abuse Guard (E).
var (
	ErrBlocked = errors.New("address is temporarily blocked")
)

// Sentinel errors for the Token-Bucket Limiter (D).
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ErrorKind is the small, client-facing error taxonomy of §7. It is
// deliberately narrower than the sentinel errors above: many distinct
// internal errors translate to the same outward-facing kind.
type ErrorKind string

// Client-facing error kinds. These are the values placed in the Message
// field of the error events sent for failed inbound events; the error event
// sent to a rejected connection carries its own free-text message instead.
const (
	KindInvalidInput       ErrorKind = "invalid-input"
	KindInvalidCode        ErrorKind = "invalid-code"
	KindNotFound           ErrorKind = "not-found"
	KindAlreadyDownloaded  ErrorKind = "already-downloaded"
	KindSenderOffline      ErrorKind = "sender-offline"
	KindRateLimited        ErrorKind = "rate-limited"
	KindSessionCapped      ErrorKind = "session-capped"
	KindBlocked            ErrorKind = "blocked"
	KindInternal           ErrorKind = "internal"
)

// ClassifyError maps an internal sentinel error to the client-facing error
// kind, following the translation table in §7. Unrecognized errors map to
// KindInternal — the client never learns more than "something went wrong".
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyDownloaded):
		return KindAlreadyDownloaded
	case errors.Is(err, ErrNoSender):
		return KindSenderOffline
	case errors.Is(err, ErrCodeUsed), errors.Is(err, ErrCodeMismatch), errors.Is(err, ErrCodeAbsent):
		return KindInvalidCode
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrConcurrencyCapped), errors.Is(err, ErrHourlyCapped):
		return KindSessionCapped
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrEmptyFilename), errors.Is(err, ErrFilenameSanitized),
		errors.Is(err, ErrSizeOutOfRange), errors.Is(err, ErrEmptyMIMEType),
		errors.Is(err, ErrInvalidSessionID), errors.Is(err, ErrEmptyEndpointID):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
