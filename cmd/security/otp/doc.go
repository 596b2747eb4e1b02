// Package otp provides one-time code generation and verification for swapi email login.
//
// Codes are short (6 hex chars by default), so their storage form is deliberately slow:
// PBKDF2-HMAC-SHA256 with a per-challenge salt that only the recipient holds (the raw
// correlation token). Challenge expiry and single-attempt consumption bound brute force.
//
// Security notes:
// - Presented codes are untrusted input and are length-bounded before derivation.
// - Comparison is constant-time.
package otp
