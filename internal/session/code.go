package session

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
)

// codeAlphabet is the glossary's one-time-code alphabet: 32 symbols,
// excluding the visually ambiguous I, O, 0, 1. Implementers MUST use this
// exact alphabet so codes remain interoperable across deployments (§9).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeLength is the fixed one-time-code length (§4.G).
const codeLength = 6

// alphabetSize is len(codeAlphabet), 32 (§4.G).
const alphabetSize = len(codeAlphabet)

// MintCode generates a 6-character code drawn uniformly from codeAlphabet
// using a CSPRNG: each index comes from crypto/rand.Int over
// [0, alphabetSize), which is unbiased.
func MintCode() (string, error) {
	var b strings.Builder
	b.Grow(codeLength)

	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(alphabetSize)))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// codeEntry holds a minted code and its single-use state (§3 "Registry entry").
type codeEntry struct {
	code string
	used bool
}

// verifyCode performs the constant-time comparison and single-use check of
// §4.G. The uppercased input is compared against the stored code using
// crypto/subtle so that response timing cannot leak how many leading
// characters matched.
func verifyCode(entry *codeEntry, input string) error {
	if entry == nil {
		return ErrCodeAbsent
	}
	if entry.used {
		return ErrCodeUsed
	}

	candidate := strings.ToUpper(input)
	if len(candidate) != len(entry.code) {
		return ErrCodeMismatch
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(entry.code)) != 1 {
		return ErrCodeMismatch
	}

	entry.used = true
	return nil
}
