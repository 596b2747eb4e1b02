package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// NewCode returns a fresh code: the hex encoding of CodeBytes random bytes.
func (c Config) NewCode() (string, error) {
	n := c.CodeBytes
	if n <= 0 {
		n = defaultCodeBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("otp code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Derive returns hex(PBKDF2-HMAC-SHA256(code, saltToken)).
// The salt is the raw correlation token of the challenge.
func (c Config) Derive(code, saltToken string) string {
	key := pbkdf2.Key([]byte(code), []byte(saltToken), c.iterations(), c.keyLength(), sha256.New)
	return hex.EncodeToString(key)
}

// Digest returns the digest Verify compares for code. Empty or oversize codes still
// pay for one KDF run on a blank input and yield "", which never matches.
func (c Config) Digest(code, saltToken string) string {
	if code == "" || len(code) > c.maxCodeLength() {
		_ = c.Derive("", saltToken)
		return ""
	}
	return c.Derive(code, saltToken)
}

// Match compares a digest produced by Digest against the stored hex digest in constant time.
func (c Config) Match(digest, storedHex string) bool {
	if digest == "" || storedHex == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedHex)) == 1
}

// Verify reports whether code, salted with saltToken, matches the stored hex digest.
func (c Config) Verify(code, saltToken, storedHex string) bool {
	return c.Match(c.Digest(code, saltToken), storedHex)
}

func (c Config) iterations() int {
	if c.Iterations <= 0 {
		return MinIterations
	}
	return c.Iterations
}

func (c Config) keyLength() int {
	if c.KeyLength <= 0 {
		return defaultKeyLength
	}
	return c.KeyLength
}

func (c Config) maxCodeLength() int {
	if c.MaxCodeLength <= 0 {
		return defaultMaxCodeLength
	}
	return c.MaxCodeLength
}
