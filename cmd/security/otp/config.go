package otp

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// MinIterations is the floor for PBKDF2 rounds.
	MinIterations = 100_000

	defaultKeyLength     = 32
	defaultCodeBytes     = 3
	defaultMaxCodeLength = 64
)

// Config is the single configuration surface for this package.
type Config struct {
	// Iterations is the PBKDF2 round count.
	Iterations int
	// KeyLength is the derived key size in bytes (hex output is twice as long).
	KeyLength int
	// CodeBytes is the random entropy of a code; the code is its hex encoding.
	CodeBytes int
	// MaxCodeLength bounds presented codes before any derivation happens.
	MaxCodeLength int
}

// DefaultConfig returns the baseline used by stored challenges.
// Changing Iterations or KeyLength invalidates outstanding challenges only.
func DefaultConfig() Config {
	return Config{
		Iterations:    MinIterations,
		KeyLength:     defaultKeyLength,
		CodeBytes:     defaultCodeBytes,
		MaxCodeLength: defaultMaxCodeLength,
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - SWAPI_OTP_PBKDF2_ITERATIONS
// - SWAPI_OTP_CODE_BYTES
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("SWAPI_OTP_PBKDF2_ITERATIONS"); ok {
		n, err := atoiInRange(v, 1, 10_000_000)
		if err != nil {
			return Config{}, fmt.Errorf("SWAPI_OTP_PBKDF2_ITERATIONS: %w", err)
		}
		cfg.Iterations = n
	}

	if v, ok := os.LookupEnv("SWAPI_OTP_CODE_BYTES"); ok {
		n, err := atoiInRange(v, 3, 16)
		if err != nil {
			return Config{}, fmt.Errorf("SWAPI_OTP_CODE_BYTES: %w", err)
		}
		cfg.CodeBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects parameter sets below the security floor.
func (c Config) Validate() error {
	if c.Iterations < MinIterations {
		return fmt.Errorf("%w: iterations=%d min=%d", ErrWeakParams, c.Iterations, MinIterations)
	}
	if c.KeyLength < 16 || c.KeyLength > 64 {
		return fmt.Errorf("%w: key_length=%d", ErrWeakParams, c.KeyLength)
	}
	if c.CodeBytes < 3 {
		return fmt.Errorf("%w: code_bytes=%d", ErrWeakParams, c.CodeBytes)
	}
	if c.MaxCodeLength < 2*c.CodeBytes {
		return fmt.Errorf("otp: max_code_length(%d) below code length(%d)", c.MaxCodeLength, 2*c.CodeBytes)
	}
	return nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if i64 < int64(minVal) || i64 > int64(maxVal) {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return int(i64), nil
}
