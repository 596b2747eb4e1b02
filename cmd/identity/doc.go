// Package identity holds the user-identity primitives shared by swapi stores:
// username canonicalization, ULID generation, and typed error kinds.
//
// It has no persistence of its own.
package identity
