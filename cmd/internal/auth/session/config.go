package session

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config defines runtime parameters of the session subsystem.
type Config struct {
	// OTPTTL is how long a challenge stays verifiable.
	OTPTTL time.Duration

	// TokenBytes is the entropy of session and correlation tokens.
	TokenBytes int
}

// DefaultConfig returns the production baseline: 10 minute codes, 256-bit tokens.
func DefaultConfig() Config {
	return Config{
		OTPTTL:     600 * time.Second,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - SWAPI_AUTH_OTP_TTL (Go duration, 1m..1h)
//   - SWAPI_AUTH_TOKEN_BYTES (32..64)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SWAPI_AUTH_OTP_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < time.Minute || d > time.Hour {
			return Config{}, fmt.Errorf("%w: SWAPI_AUTH_OTP_TTL=%q", ErrConfig, v)
		}
		cfg.OTPTTL = d
	}

	if v := os.Getenv("SWAPI_AUTH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, fmt.Errorf("%w: SWAPI_AUTH_TOKEN_BYTES=%q", ErrConfig, v)
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
