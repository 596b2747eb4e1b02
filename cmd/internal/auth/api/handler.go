package authapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"swapi/cmd/identity"
	"swapi/cmd/internal/auth/session"
	"swapi/cmd/internal/metrics"
	"swapi/cmd/internal/ratelimit"
	"swapi/cmd/internal/rpc"
	v1 "swapi/shared/contracts/rpc/v1"
)

// CapAccountManager guards user administration methods.
const CapAccountManager = "accountmanager"

// Sessions is the session surface exposed over RPC. *session.Manager implements it.
type Sessions interface {
	GetUser(ctx context.Context, username string) (session.User, error)
	RegisterUser(ctx context.Context, username, role string) error
	SetUserRole(ctx context.Context, username, role string) error
	SendOTP(ctx context.Context, username string) (string, error)
	Login(ctx context.Context, username, code, correlationToken string) (v1.LoginResult, error)
	Logoff(ctx context.Context, rawToken string) error
	LogoffAll(ctx context.Context, username string) error
	ListRoles() []string
	GetAllUsers(ctx context.Context) ([]session.User, error)
}

// Handler binds session operations to RPC methods.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions Sessions
	metrics  *metrics.Metrics
	now      func() time.Time

	otpLimiter   *ratelimit.Keyed
	loginLimiter *ratelimit.Keyed
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records OTP checks and throttling.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides time.Now for the throttles.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler over sessions.
func NewHandler(log *slog.Logger, sessions Sessions, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil sessions")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:          log,
		cfg:          cfg,
		sessions:     sessions,
		now:          time.Now,
		otpLimiter:   ratelimit.NewKeyed(cfg.SendOTPIPMax, cfg.SendOTPIPWindow),
		loginLimiter: ratelimit.NewKeyed(cfg.LoginIPMax, cfg.LoginIPWindow),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Methods returns the session RPC methods for rpc.NewRegistry.
func (h *Handler) Methods() []rpc.Method {
	return []rpc.Method{
		{Name: "login", WantsContext: true, Handler: h.login},
		{Name: "logoff", WantsContext: true, Handler: h.logoff},
		{Name: "logoff_all", WantsContext: true, Handler: h.logoffAll},
		{Name: "send_otp", WantsContext: true, Handler: h.sendOTP},

		{Name: "get_user", Require: CapAccountManager, Handler: h.getUser},
		{Name: "register_user", Require: CapAccountManager, Handler: h.registerUser},
		{Name: "set_user_role", Require: CapAccountManager, Handler: h.setUserRole},
		{Name: "list_roles", Require: CapAccountManager, Handler: h.listRoles},
		{Name: "get_all_users", Require: CapAccountManager, Handler: h.getAllUsers},
	}
}

// login verifies the code against the correlation token held in the call and, on
// success, replaces it with the new session token.
func (h *Handler) login(ctx context.Context, call *rpc.Call, args rpc.Args) (any, error) {
	var user, code string
	if err := args.Bind([]string{"user", "otp"}, &user, &code); err != nil {
		return nil, err
	}
	if err := h.throttle(ctx, call, "login", h.loginLimiter); err != nil {
		return nil, err
	}

	res, err := h.sessions.Login(ctx, user, code, call.Token)
	if err != nil {
		return nil, err
	}
	h.metrics.ObserveOTPCheck(res.Success)

	if !res.Success {
		h.auditLoginFailed(ctx, call, identity.NormalizeUsername(user))
		return res, nil
	}

	call.Token = res.Token
	h.auditLoginSuccess(ctx, call, identity.NormalizeUsername(user))
	return res, nil
}

func (h *Handler) logoff(ctx context.Context, call *rpc.Call, args rpc.Args) (any, error) {
	if err := args.NoArgs(); err != nil {
		return nil, err
	}
	if err := h.sessions.Logoff(ctx, call.Token); err != nil {
		return nil, err
	}
	if call.Token != "" {
		h.auditLogoff(ctx, call)
	}
	call.Token = ""
	return nil, nil
}

func (h *Handler) logoffAll(ctx context.Context, call *rpc.Call, args rpc.Args) (any, error) {
	if err := args.NoArgs(); err != nil {
		return nil, err
	}
	if !call.Anonymous() {
		if err := h.sessions.LogoffAll(ctx, call.User); err != nil {
			return nil, err
		}
		h.auditLogoffAll(ctx, call)
	}
	call.Token = ""
	return nil, nil
}

// sendOTP starts a challenge. The correlation token becomes the call token, so the
// cookie carries it to the following login; it is also returned for cookieless clients.
func (h *Handler) sendOTP(ctx context.Context, call *rpc.Call, args rpc.Args) (any, error) {
	var username string
	if err := args.Bind([]string{"username"}, &username); err != nil {
		return nil, err
	}
	if err := h.throttle(ctx, call, "send_otp", h.otpLimiter); err != nil {
		return nil, err
	}

	tok, err := h.sessions.SendOTP(ctx, username)
	if err != nil {
		return nil, asArgumentError(err)
	}

	call.Token = tok
	h.auditOTPSent(ctx, call, identity.NormalizeUsername(username))
	return tok, nil
}

// getUser returns null for unknown users.
func (h *Handler) getUser(ctx context.Context, _ *rpc.Call, args rpc.Args) (any, error) {
	var username string
	if err := args.Bind([]string{"username"}, &username); err != nil {
		return nil, err
	}
	u, err := h.sessions.GetUser(ctx, username)
	if errors.Is(err, session.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (h *Handler) registerUser(ctx context.Context, _ *rpc.Call, args rpc.Args) (any, error) {
	var username, role string
	if err := args.Bind([]string{"username", "role"}, &username, &role); err != nil {
		return nil, err
	}
	return nil, asArgumentError(h.sessions.RegisterUser(ctx, username, role))
}

func (h *Handler) setUserRole(ctx context.Context, _ *rpc.Call, args rpc.Args) (any, error) {
	var username, role string
	if err := args.Bind([]string{"username", "role"}, &username, &role); err != nil {
		return nil, err
	}
	return nil, h.sessions.SetUserRole(ctx, username, role)
}

func (h *Handler) listRoles(_ context.Context, _ *rpc.Call, args rpc.Args) (any, error) {
	if err := args.NoArgs(); err != nil {
		return nil, err
	}
	out := h.sessions.ListRoles()
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (h *Handler) getAllUsers(ctx context.Context, _ *rpc.Call, args rpc.Args) (any, error) {
	if err := args.NoArgs(); err != nil {
		return nil, err
	}
	users, err := h.sessions.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []session.User{}
	}
	return users, nil
}

// asArgumentError surfaces identity validation failures as InvalidArguments.
func asArgumentError(err error) error {
	if err == nil {
		return nil
	}
	var oe identity.OpError
	if errors.As(err, &oe) && identity.IsInvalidInput(err) {
		return rpc.InvalidArguments("%s", oe.Msg)
	}
	return err
}
