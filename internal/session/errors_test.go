package session_test

import (
	"errors"
	"testing"

	"github.com/dropvault/signalcore/internal/session"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want session.ErrorKind
	}{
		{"not found", session.ErrNotFound, session.KindNotFound},
		{"already downloaded", session.ErrAlreadyDownloaded, session.KindAlreadyDownloaded},
		{"no sender", session.ErrNoSender, session.KindSenderOffline},
		{"code used", session.ErrCodeUsed, session.KindInvalidCode},
		{"code mismatch", session.ErrCodeMismatch, session.KindInvalidCode},
		{"code absent", session.ErrCodeAbsent, session.KindInvalidCode},
		{"rate limited", session.ErrRateLimited, session.KindRateLimited},
		{"concurrency capped", session.ErrConcurrencyCapped, session.KindSessionCapped},
		{"hourly capped", session.ErrHourlyCapped, session.KindSessionCapped},
		{"blocked", session.ErrBlocked, session.KindBlocked},
		{"empty filename", session.ErrEmptyFilename, session.KindInvalidInput},
		{"size out of range", session.ErrSizeOutOfRange, session.KindInvalidInput},
		{"invalid session id", session.ErrInvalidSessionID, session.KindInvalidInput},
		{"unrecognized error", errors.New("something else"), session.KindInternal},
		{"wrapped sentinel", wrap(session.ErrNotFound), session.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := session.ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func wrap(err error) error {
	return errors.Join(err)
}
