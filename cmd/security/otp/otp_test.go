package otp

import (
	"strings"
	"testing"
)

func TestNewCode_Format(t *testing.T) {
	cfg := DefaultConfig()

	code, err := cfg.NewCode()
	if err != nil {
		t.Fatalf("NewCode error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 hex chars, got %q", code)
	}
	for _, r := range code {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("non-hex rune %q in %q", r, code)
		}
	}
}

func TestDerive_DeterministicPerSalt(t *testing.T) {
	cfg := DefaultConfig()

	a := cfg.Derive("a1b2c3", "salt-token-1")
	if a != cfg.Derive("a1b2c3", "salt-token-1") {
		t.Fatalf("derive must be deterministic")
	}
	if len(a) != 2*cfg.KeyLength {
		t.Fatalf("unexpected digest length %d", len(a))
	}
	if a == cfg.Derive("a1b2c3", "salt-token-2") {
		t.Fatalf("different salts must produce different digests")
	}
}

func TestVerify(t *testing.T) {
	cfg := DefaultConfig()
	stored := cfg.Derive("a1b2c3", "salt")

	if !cfg.Verify("a1b2c3", "salt", stored) {
		t.Fatalf("expected match")
	}
	if cfg.Verify("a1b2c4", "salt", stored) {
		t.Fatalf("expected mismatch on wrong code")
	}
	if cfg.Verify("a1b2c3", "other", stored) {
		t.Fatalf("expected mismatch on wrong salt")
	}
	if cfg.Verify("", "salt", stored) {
		t.Fatalf("expected mismatch on empty code")
	}
	long := make([]byte, cfg.MaxCodeLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if cfg.Verify(string(long), "salt", stored) {
		t.Fatalf("expected oversize code to be rejected")
	}
}

func TestDigest_RejectedCodesYieldBlank(t *testing.T) {
	cfg := DefaultConfig()
	stored := cfg.Derive("a1b2c3", "salt")

	if got := cfg.Digest("a1b2c3", "salt"); got != stored {
		t.Fatalf("digest mismatch: %q vs %q", got, stored)
	}
	if got := cfg.Digest("", "salt"); got != "" {
		t.Fatalf("expected blank digest for empty code, got %q", got)
	}
	long := strings.Repeat("a", cfg.MaxCodeLength+1)
	if got := cfg.Digest(long, "salt"); got != "" {
		t.Fatalf("expected blank digest for oversize code, got %q", got)
	}
}

func TestMatch(t *testing.T) {
	cfg := DefaultConfig()
	stored := cfg.Derive("a1b2c3", "salt")

	if !cfg.Match(stored, stored) {
		t.Fatalf("expected match")
	}
	if cfg.Match("", stored) {
		t.Fatalf("blank digest must not match")
	}
	if cfg.Match(stored, "") {
		t.Fatalf("blank stored digest must not match")
	}
	if cfg.Match(cfg.Derive("a1b2c4", "salt"), stored) {
		t.Fatalf("expected mismatch")
	}
}
