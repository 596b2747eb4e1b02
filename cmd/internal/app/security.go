package app

import (
	"errors"
	"fmt"

	"swapi/cmd/security/token"
)

// LoadTokenHasher enforces the token hashing policy at startup and returns the hasher.
//
// There is no fallback: a missing or short HMAC key is a fatal configuration error.
func LoadTokenHasher() (*token.Hasher, error) {
	key, err := token.KeyFromEnv(token.MinKeyBytes)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return nil, fmt.Errorf("security policy: %s (or %s) is required", token.HMACEnvKey, token.HMACFileEnvKey)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return nil, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.HMACEnvKey, token.MinKeyBytes)
		default:
			return nil, err
		}
	}
	return token.NewHasher(key, token.MinKeyBytes)
}
