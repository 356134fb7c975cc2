package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// fieldKeySize is the fixed AES-256 key size of §4.B.
const fieldKeySize = 32

// scryptSalt is the fixed salt used when deriving a key from a
// non-hex-encoded configured secret (§4.B, derivation path 2). A fixed salt
// means two deployments with the same passphrase derive the same key,
// which is the documented behavior — this is a KDF for key-stretching a
// single operator-supplied secret, not a password store.
var scryptSalt = []byte("signalcore-field-encryption-v1")

// ErrNoEncryptionKey is returned by DeriveFieldKey when no key material is
// configured. config.Validate refuses startup in production; outside
// production the daemon substitutes a fixed development key.
var ErrNoEncryptionKey = errors.New("field encryption: no key configured")

// FieldCipher implements the Field Encryption component (§4.B): AES-256-GCM
// with a random nonce per call, envelope-serialized as
// "<nonce-hex>:<tag-hex>:<body-hex>". Any input lacking exactly two ':'
// separators is treated as unencrypted legacy plaintext and decrypted as a
// pass-through, and any GCM open failure is logged and also passed through
// unchanged rather than surfaced as an error — §4.B requires forward
// compatibility with unencrypted values across a migration, not a hard
// failure.
type FieldCipher struct {
	gcm cipher.AEAD
	log *slog.Logger
}

// DeriveFieldKey resolves the configured METADATA_ENCRYPTION_KEY value into
// 32 raw key bytes per §4.B's priority order: a 64-hex-character value is
// decoded directly; any other non-empty value is stretched through scrypt,
// a memory-hard KDF, using the fixed salt above. An empty secret returns
// ErrNoEncryptionKey.
func DeriveFieldKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoEncryptionKey
	}

	if len(secret) == 64 {
		if key, err := hex.DecodeString(secret); err == nil && len(key) == fieldKeySize {
			return key, nil
		}
	}

	return scrypt.Key([]byte(secret), scryptSalt, 1<<15, 8, 1, fieldKeySize)
}

// NewFieldCipher constructs a FieldCipher from 32 raw key bytes.
func NewFieldCipher(key []byte, logger *slog.Logger) (*FieldCipher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &FieldCipher{gcm: gcm, log: logger}, nil
}

// Encrypt seals plaintext and returns the hex envelope of §4.B.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - c.gcm.Overhead()
	body, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(body),
	}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. Per §4.B: a value without
// exactly two ':' separators is unencrypted legacy plaintext and is
// returned unchanged; any decode or authentication failure is logged and
// also returns the input unchanged rather than propagating an error.
func (c *FieldCipher) Decrypt(value string) string {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return value
	}

	nonce, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	body, err3 := hex.DecodeString(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		c.log.Warn("field decrypt: malformed hex envelope, passing through")
		return value
	}

	plaintext, err := c.gcm.Open(nil, nonce, append(body, tag...), nil)
	if err != nil {
		c.log.Warn("field decrypt: authentication failed, passing through")
		return value
	}

	return string(plaintext)
}
