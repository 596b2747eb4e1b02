// Package token provides session-token primitives for swapi.
//
// It is the single source of truth for how raw tokens are generated and how they are
// transformed into their storage form.
//
// Storage form:
// - HMAC-SHA256(token, key), hex encoded (64 chars).
// - The key is deployment-wide and comes from configuration, never from source.
//
// Environment:
// - SWAPI_TOKEN_HMAC_KEY: the key itself.
// - SWAPI_TOKEN_HMAC_KEY_FILE: path to a file holding the key (used when the env key is blank).
package token
