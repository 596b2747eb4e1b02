package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "SWAPI_TOKEN_HMAC_KEY"

	// HMACFileEnvKey names a file that holds the secret.
	HMACFileEnvKey = "SWAPI_TOKEN_HMAC_KEY_FILE"

	// MinKeyBytes is the minimum accepted key size for HMAC-SHA256.
	MinKeyBytes = 32

	// DefaultRawBytes is the entropy of raw session and correlation tokens (256 bits).
	DefaultRawBytes = 32
)

// Hasher turns raw tokens into their storage form.
type Hasher struct {
	key []byte
}

// NewHasher validates key and returns a Hasher. The key is copied.
func NewHasher(key []byte, minBytes int) (*Hasher, error) {
	if len(key) == 0 {
		return nil, ErrHMACKeyMissing
	}
	if minBytes > 0 && len(key) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

// Hash returns the hex HMAC-SHA256 of raw. An empty raw token is hashed as "".
func (h *Hasher) Hash(raw string) string {
	return HashHMACSHA256Hex(raw, h.key)
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// KeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// SWAPI_TOKEN_HMAC_KEY wins; otherwise SWAPI_TOKEN_HMAC_KEY_FILE is read.
// If neither yields a key -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func KeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		path := strings.TrimSpace(os.Getenv(HMACFileEnvKey))
		if path != "" {
			b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied secret path.
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", HMACFileEnvKey, err)
			}
			raw = strings.TrimSpace(string(b))
		}
	}
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// NewRaw returns a cryptographically random token, hex encoded (2*nBytes chars).
// If nBytes <= 0, DefaultRawBytes is used.
func NewRaw(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultRawBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
