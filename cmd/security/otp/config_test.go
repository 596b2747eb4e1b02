package otp

import (
	"errors"
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"SWAPI_OTP_PBKDF2_ITERATIONS", "SWAPI_OTP_CODE_BYTES"} {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("SWAPI_OTP_PBKDF2_ITERATIONS", "200000")
	t.Setenv("SWAPI_OTP_CODE_BYTES", "4")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Iterations != 200000 || cfg.CodeBytes != 4 {
		t.Fatalf("override failed: %+v", cfg)
	}
}

func TestFromEnv_WeakIterations(t *testing.T) {
	t.Setenv("SWAPI_OTP_PBKDF2_ITERATIONS", "1000")
	t.Setenv("SWAPI_OTP_CODE_BYTES", "3")

	_, err := FromEnv()
	if !errors.Is(err, ErrWeakParams) {
		t.Fatalf("expected ErrWeakParams, got %v", err)
	}
}

func TestFromEnv_NotAnInteger(t *testing.T) {
	t.Setenv("SWAPI_OTP_CODE_BYTES", "three")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
