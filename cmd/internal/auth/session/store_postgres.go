package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swapi/cmd/identity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (swapi schema).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetUserByUsername loads a user by its normalized username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, role
		FROM swapi.users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateUser inserts a user row.
func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swapi.users (id, username, role, created_at)
		VALUES ($1, $2, $3, now())
	`, u.ID, u.Username, u.Role)
	if err != nil {
		if field, ok := identity.ClassifyUniqueViolation(err); ok && field == "username" {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return err
	}
	return nil
}

// SetUserRole updates a user's role.
func (s *PostgresStore) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE swapi.users
		SET role = $2
		WHERE id = $1
	`, userID, role)
	return err
}

// ListUsers returns every user ordered by username.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, role
		FROM swapi.users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.Role)
		return u, err
	})
}

// CreateToken inserts a session token row.
func (s *PostgresStore) CreateToken(ctx context.Context, t Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swapi.tokens (id, user_id, token_hash, created_at)
		VALUES ($1, $2, $3, now())
	`, t.ID, t.UserID, t.TokenHash)
	return classifyInsertErr("session.create_token", err)
}

// GetUserByTokenHash resolves a session token hash to its user.
func (s *PostgresStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.role
		FROM swapi.tokens t
		JOIN swapi.users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`, tokenHash).Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// DeleteToken deletes one session token.
func (s *PostgresStore) DeleteToken(ctx context.Context, tokenHash string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM swapi.tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteUserTokens deletes all session tokens of a user.
func (s *PostgresStore) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM swapi.tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateChallenge inserts an OTP challenge.
func (s *PostgresStore) CreateChallenge(ctx context.Context, c Challenge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swapi.challenges (id, user_id, otp_hash, token_hash, expire)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, c.OTPHash, c.TokenHash, c.Expire)
	return classifyInsertErr("session.create_challenge", err)
}

// ConsumeChallenge deletes the matching live challenge and sweeps expired rows in one transaction.
//
// The DELETE ... RETURNING takes the row lock, so a concurrent consumer blocks and then
// matches nothing once the winner commits.
func (s *PostgresStore) ConsumeChallenge(ctx context.Context, username, tokenHash string, now time.Time) (Challenge, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Challenge{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, found, err := consumeChallengeTx(ctx, tx, username, tokenHash, now)
	if err != nil {
		return Challenge{}, false, err
	}

	if _, err := sweepExpiredTx(ctx, tx, now); err != nil {
		return Challenge{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Challenge{}, false, err
	}
	return c, found, nil
}

// SweepExpiredChallenges deletes all expired challenges.
func (s *PostgresStore) SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM swapi.challenges WHERE expire <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func classifyInsertErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if field, ok := identity.ClassifyUniqueViolation(err); ok {
		return identity.ConflictError{Op: op, Field: field}
	}
	if identity.IsForeignKeyViolation(err) {
		return identity.NotFoundError{Op: op, Resource: "user"}
	}
	return err
}
