// Package session implements email-OTP login and opaque session tokens.
//
// A login is a two-step challenge: SendOTP stores a Challenge keyed by the hash of a random
// correlation token and mails a short code; Login consumes that challenge (single attempt,
// success or not) and, on a match, issues a session token. Only HMAC hashes of raw tokens
// and PBKDF2 digests of codes are persisted.
//
// Capabilities come from a role graph flattened by package roles; the resolved table is
// replaced atomically by ApplySettings.
package session
