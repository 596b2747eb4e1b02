package session

import (
	"context"
	"time"
)

// User mirrors a swapi.users row.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Token mirrors a swapi.tokens row. TokenHash is the HMAC of the raw session token.
type Token struct {
	ID        string
	UserID    string
	TokenHash string
}

// Challenge mirrors a swapi.challenges row.
type Challenge struct {
	ID        string
	UserID    string
	OTPHash   string
	TokenHash string
	Expire    time.Time
}

// Store abstracts persistence for users, session tokens and OTP challenges.
//
// Reads always hit committed storage; implementations must not cache.
type Store interface {
	// GetUserByUsername returns ErrUserNotFound when absent.
	GetUserByUsername(ctx context.Context, username string) (User, error)

	// CreateUser inserts u. A username conflict returns an error wrapping ErrUserExists.
	CreateUser(ctx context.Context, u User) error

	// SetUserRole updates the role of the user with userID.
	SetUserRole(ctx context.Context, userID, role string) error

	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]User, error)

	// CreateToken inserts a session token row.
	CreateToken(ctx context.Context, t Token) error

	// GetUserByTokenHash joins tokens to users. Returns ErrUserNotFound when absent.
	GetUserByTokenHash(ctx context.Context, tokenHash string) (User, error)

	// DeleteToken deletes the row with tokenHash and returns the deleted count.
	DeleteToken(ctx context.Context, tokenHash string) (int64, error)

	// DeleteUserTokens deletes every token of userID and returns the deleted count.
	DeleteUserTokens(ctx context.Context, userID string) (int64, error)

	// CreateChallenge inserts an OTP challenge row.
	CreateChallenge(ctx context.Context, c Challenge) error

	// ConsumeChallenge atomically deletes and returns the live challenge matching
	// (tokenHash, username, expire > now), then deletes every challenge expired at now.
	// found is false when no live challenge matched; the sweep still runs.
	// Of two concurrent consumers of one challenge, at most one gets found=true.
	ConsumeChallenge(ctx context.Context, username, tokenHash string, now time.Time) (c Challenge, found bool, err error)

	// SweepExpiredChallenges deletes every challenge with expire <= now.
	SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}
