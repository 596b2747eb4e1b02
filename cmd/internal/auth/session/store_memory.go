package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"swapi/cmd/identity"
)

// InMemoryStore is a dev-only fallback when DB is not configured. Unit tests use it too.
// A single mutex serializes every operation, which gives ConsumeChallenge its atomicity.
type InMemoryStore struct {
	mu         sync.Mutex
	users      map[string]User      // id -> user
	byName     map[string]string    // username -> id
	tokens     map[string]Token     // token_hash -> token
	challenges map[string]Challenge // token_hash -> challenge
}

// NewInMemoryStore constructs an in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:      make(map[string]User),
		byName:     make(map[string]string),
		tokens:     make(map[string]Token),
		challenges: make(map[string]Challenge),
	}
}

// GetUserByUsername loads a user by username.
func (s *InMemoryStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

// CreateUser inserts a user.
func (s *InMemoryStore) CreateUser(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[u.Username]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
	}
	if _, ok := s.users[u.ID]; ok {
		return identity.ConflictError{Op: "session.create_user", Field: "id"}
	}
	s.users[u.ID] = u
	s.byName[u.Username] = u.ID
	return nil
}

// SetUserRole updates a user's role; unknown IDs are ignored like a zero-row UPDATE.
func (s *InMemoryStore) SetUserRole(ctx context.Context, userID, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.Role = role
	s.users[userID] = u
	return nil
}

// ListUsers returns users ordered by username.
func (s *InMemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// CreateToken inserts a session token.
func (s *InMemoryStore) CreateToken(ctx context.Context, t Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[t.UserID]; !ok {
		return identity.NotFoundError{Op: "session.create_token", Resource: "user"}
	}
	if _, ok := s.tokens[t.TokenHash]; ok {
		return identity.ConflictError{Op: "session.create_token", Field: "token_hash"}
	}
	s.tokens[t.TokenHash] = t
	return nil
}

// GetUserByTokenHash resolves a token hash to its user.
func (s *InMemoryStore) GetUserByTokenHash(ctx context.Context, tokenHash string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenHash]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u, ok := s.users[t.UserID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// DeleteToken deletes one token.
func (s *InMemoryStore) DeleteToken(ctx context.Context, tokenHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[tokenHash]; !ok {
		return 0, nil
	}
	delete(s.tokens, tokenHash)
	return 1, nil
}

// DeleteUserTokens deletes all tokens of a user.
func (s *InMemoryStore) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}

// CreateChallenge inserts a challenge.
func (s *InMemoryStore) CreateChallenge(ctx context.Context, c Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[c.UserID]; !ok {
		return identity.NotFoundError{Op: "session.create_challenge", Resource: "user"}
	}
	if _, ok := s.challenges[c.TokenHash]; ok {
		return identity.ConflictError{Op: "session.create_challenge", Field: "token_hash"}
	}
	s.challenges[c.TokenHash] = c
	return nil
}

// ConsumeChallenge deletes the matching live challenge, then sweeps expired ones.
func (s *InMemoryStore) ConsumeChallenge(ctx context.Context, username, tokenHash string, now time.Time) (Challenge, bool, error) {
	if err := ctx.Err(); err != nil {
		return Challenge{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		out   Challenge
		found bool
	)
	if c, ok := s.challenges[tokenHash]; ok && c.Expire.After(now) {
		if u, ok := s.users[c.UserID]; ok && u.Username == username {
			delete(s.challenges, tokenHash)
			out, found = c, true
		}
	}

	s.sweepLocked(now)
	return out, found, nil
}

// SweepExpiredChallenges deletes expired challenges.
func (s *InMemoryStore) SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now), nil
}

func (s *InMemoryStore) sweepLocked(now time.Time) int64 {
	var n int64
	for h, c := range s.challenges {
		if !c.Expire.After(now) {
			delete(s.challenges, h)
			n++
		}
	}
	return n
}
