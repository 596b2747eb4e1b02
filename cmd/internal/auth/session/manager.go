package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"swapi/cmd/identity"
	"swapi/cmd/internal/auth/roles"
	"swapi/cmd/internal/notify"
	"swapi/cmd/security/otp"
	"swapi/cmd/security/token"
	v1 "swapi/shared/contracts/rpc/v1"
)

const (
	// OTPSubject is the subject line of the login code mail.
	OTPSubject = "Email Login Code"

	// InvalidCodeMessage is the only failure reason Login ever reports.
	InvalidCodeMessage = "Code is Invalid"
)

// Deps are the collaborators of a Manager.
type Deps struct {
	Store    Store
	Hasher   *token.Hasher
	OTP      otp.Config
	Notifier notify.Notifier
	Logger   *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager implements registration, OTP login and session token lifecycle.
//
// It holds no session state of its own: every lookup reads the Store. The role table and
// the applied Settings are swapped atomically, so ApplySettings may run while requests are
// in flight.
type Manager struct {
	cfg      Config
	store    Store
	hasher   *token.Hasher
	otp      otp.Config
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time
	digest   func(code, saltToken string) string

	roles    *roles.Holder
	settings atomic.Pointer[Settings]
}

// NewManager validates deps and returns a Manager serving an empty role table.
// ApplySettings must run before SendOTP can auto-register users.
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if deps.Store == nil || deps.Hasher == nil {
		return nil, fmt.Errorf("%w: store and hasher are required", ErrConfig)
	}
	if err := deps.OTP.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.OTPTTL <= 0 || cfg.TokenBytes <= 0 {
		return nil, fmt.Errorf("%w: otp ttl and token bytes must be positive", ErrConfig)
	}

	m := &Manager{
		cfg:      cfg,
		store:    deps.Store,
		hasher:   deps.Hasher,
		otp:      deps.OTP,
		notifier: deps.Notifier,
		log:      deps.Logger,
		now:      deps.Now,
		digest:   deps.OTP.Digest,
		roles:    roles.NewHolder(),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.settings.Store(&Settings{})
	return m, nil
}

// ApplySettings validates s, registers the admin user and then swaps in the resolved role
// table. On error the previous role table and settings stay in place.
func (m *Manager) ApplySettings(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	applied := s
	applied.AdminUser = identity.NormalizeUsername(s.AdminUser)
	if applied.AdminUser != "" {
		if err := m.RegisterUser(ctx, applied.AdminUser, RootRole); err != nil {
			return fmt.Errorf("register admin user: %w", err)
		}
	}

	m.roles.Store(roles.Resolve(s.Roles))
	m.settings.Store(&applied)
	return nil
}

// Settings returns the currently applied settings.
func (m *Manager) Settings() Settings {
	return *m.settings.Load()
}

// GetUser returns the user with username or ErrUserNotFound.
func (m *Manager) GetUser(ctx context.Context, username string) (User, error) {
	username = identity.NormalizeUsername(username)
	if username == "" {
		return User{}, ErrUserNotFound
	}
	return m.store.GetUserByUsername(ctx, username)
}

// RegisterUser creates username with role. It is a no-op for an empty or existing username.
func (m *Manager) RegisterUser(ctx context.Context, username, role string) error {
	username = identity.NormalizeUsername(username)
	if username == "" {
		return nil
	}
	if !identity.ValidUsername(username) {
		return identity.Invalid("session.register_user", "username too long")
	}

	_, err := m.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, ErrUserNotFound):
		return err
	}

	now := m.now().UTC()
	id, err := identity.NewULID(now)
	if err != nil {
		return err
	}

	err = m.store.CreateUser(ctx, User{ID: id, Username: username, Role: role})
	if errors.Is(err, ErrUserExists) {
		// Lost a registration race; the row exists either way.
		return nil
	}
	return err
}

// SetUserRole changes the role of username. Unknown users are ignored.
func (m *Manager) SetUserRole(ctx context.Context, username, role string) error {
	u, err := m.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.SetUserRole(ctx, u.ID, role)
}

// SendOTP registers username if needed, stores a new challenge and mails the code.
//
// It returns the raw correlation token; the caller hands it back to the client, which
// presents it again on Login. Delivery failures are logged and never returned.
func (m *Manager) SendOTP(ctx context.Context, username string) (string, error) {
	username = identity.NormalizeUsername(username)
	if !identity.ValidUsername(username) {
		return "", identity.Invalid("session.send_otp", "username is required")
	}

	st := m.Settings()
	if err := m.RegisterUser(ctx, username, st.DefaultRole); err != nil {
		return "", err
	}
	u, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	raw, err := token.NewRaw(m.cfg.TokenBytes)
	if err != nil {
		return "", err
	}
	code, err := m.otp.NewCode()
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	id, err := identity.NewULID(now)
	if err != nil {
		return "", err
	}

	err = m.store.CreateChallenge(ctx, Challenge{
		ID:        id,
		UserID:    u.ID,
		OTPHash:   m.otp.Derive(code, raw),
		TokenHash: m.hasher.Hash(raw),
		Expire:    now.Add(m.cfg.OTPTTL),
	})
	if err != nil {
		return "", err
	}

	if m.notifier != nil {
		msg := notify.Message{To: username, Subject: OTPSubject, Body: otpBody(code, m.cfg.OTPTTL, st.AdminEmail)}
		if err := m.notifier.Notify(ctx, msg); err != nil {
			m.log.Warn("auth.otp.notify.fail", "err", err)
		}
	}
	return raw, nil
}

// CheckOTP consumes the challenge identified by correlationToken and reports whether code
// matched. The challenge is gone afterwards whatever the outcome, and every expired
// challenge is swept. A false result does not say which condition failed.
func (m *Manager) CheckOTP(ctx context.Context, username, code, correlationToken string) (bool, error) {
	username = identity.NormalizeUsername(username)

	// The KDF runs before the lookup so a missing challenge costs as much as a wrong code.
	digest := m.digest(code, correlationToken)
	c, found, err := m.store.ConsumeChallenge(ctx, username, m.hasher.Hash(correlationToken), m.now().UTC())
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return m.otp.Match(digest, c.OTPHash), nil
}

// Login verifies the OTP and, on success, issues a new session token.
func (m *Manager) Login(ctx context.Context, username, code, correlationToken string) (v1.LoginResult, error) {
	username = identity.NormalizeUsername(username)

	ok, err := m.CheckOTP(ctx, username, code, correlationToken)
	if err != nil {
		return v1.LoginResult{}, err
	}
	if !ok {
		return v1.LoginResult{Success: false, Error: InvalidCodeMessage}, nil
	}

	raw, err := m.issueToken(ctx, username)
	if err != nil {
		return v1.LoginResult{}, err
	}
	return v1.LoginResult{Success: true, Token: raw}, nil
}

func (m *Manager) issueToken(ctx context.Context, username string) (string, error) {
	u, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	raw, err := token.NewRaw(m.cfg.TokenBytes)
	if err != nil {
		return "", err
	}
	id, err := identity.NewULID(m.now().UTC())
	if err != nil {
		return "", err
	}

	if err := m.store.CreateToken(ctx, Token{ID: id, UserID: u.ID, TokenHash: m.hasher.Hash(raw)}); err != nil {
		return "", err
	}
	return raw, nil
}

// Logoff revokes the session token rawToken. Unknown tokens are ignored.
func (m *Manager) Logoff(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	_, err := m.store.DeleteToken(ctx, m.hasher.Hash(rawToken))
	return err
}

// LogoffAll revokes every session token of username. Anonymous and unknown users are ignored.
func (m *Manager) LogoffAll(ctx context.Context, username string) error {
	u, err := m.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = m.store.DeleteUserTokens(ctx, u.ID)
	return err
}

// CheckToken resolves a raw session token to its username.
func (m *Manager) CheckToken(ctx context.Context, rawToken string) (string, bool, error) {
	if rawToken == "" {
		return "", false, nil
	}
	u, err := m.store.GetUserByTokenHash(ctx, m.hasher.Hash(rawToken))
	if errors.Is(err, ErrUserNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.Username, true, nil
}

// GetCapabilities returns the flattened role set of username.
// ok is false when the user is unknown or its role is not in the table.
func (m *Manager) GetCapabilities(ctx context.Context, username string) (roles.Set, bool, error) {
	u, err := m.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	caps, ok := m.roles.Load().Capabilities(u.Role)
	return caps, ok, nil
}

// ListRoles returns the declared role names, sorted.
func (m *Manager) ListRoles() []string {
	return m.roles.Load().Roles()
}

// GetAllUsers returns every user ordered by username.
func (m *Manager) GetAllUsers(ctx context.Context) ([]User, error) {
	return m.store.ListUsers(ctx)
}

// SweepExpired deletes expired challenges outside the verification path.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.SweepExpiredChallenges(ctx, m.now().UTC())
}

func otpBody(code string, ttl time.Duration, adminEmail string) string {
	return fmt.Sprintf("Please enter the code %s to login."+
		"\n\nOnly one attempt is permitted. Codes expire"+
		" after %d minutes. If you are being spammed by"+
		" this address, email %s", code, int(ttl.Minutes()), adminEmail)
}
