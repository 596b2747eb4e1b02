package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"swapi/cmd/internal/auth/roles"
	"swapi/cmd/internal/metrics"
	v1 "swapi/shared/contracts/rpc/v1"
)

const (
	defaultMaxBodyBytes = 1 << 20

	outcomeOK = "ok"
)

// Authenticator resolves session tokens and capabilities. *session.Manager implements it.
type Authenticator interface {
	CheckToken(ctx context.Context, rawToken string) (string, bool, error)
	GetCapabilities(ctx context.Context, username string) (roles.Set, bool, error)
}

// DispatchInput is one parsed call plus its transport context.
type DispatchInput struct {
	Request v1.Request
	// Token is the transport-level token (cookie). A token in the request body wins.
	Token       string
	IP          string
	HTTPRequest *http.Request
}

// DispatchOutput is the rendered response.
type DispatchOutput struct {
	Body []byte
	// Token is the authoritative outgoing token; empty means none.
	Token string
	// Outcome is "ok" or the error name.
	Outcome string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithCookie sets the initial cookie configuration.
func WithCookie(c CookieConfig) Option {
	return func(d *Dispatcher) { d.SetCookieConfig(c) }
}

// WithMaxBodyBytes bounds HTTP request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxBody = n
		}
	}
}

// WithClock overrides time.Now (cookie expiry).
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher enforces authorization and invokes registry methods.
type Dispatcher struct {
	reg     *Registry
	auth    Authenticator
	log     *slog.Logger
	metrics *metrics.Metrics
	maxBody int64
	now     func() time.Time

	cookie atomic.Pointer[CookieConfig]
}

// NewDispatcher wires a dispatcher over reg and auth.
func NewDispatcher(reg *Registry, auth Authenticator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:     reg,
		auth:    auth,
		log:     slog.Default(),
		maxBody: defaultMaxBodyBytes,
		now:     time.Now,
	}
	d.SetCookieConfig(DefaultCookieConfig())
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetCookieConfig replaces the cookie configuration (settings reload).
func (d *Dispatcher) SetCookieConfig(c CookieConfig) {
	c = c.normalized()
	d.cookie.Store(&c)
}

// CookieConfig returns the current cookie configuration.
func (d *Dispatcher) CookieConfig() CookieConfig {
	return *d.cookie.Load()
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch runs one call. It never returns an error: every failure is rendered into Body.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) DispatchOutput {
	start := time.Now()

	tok := in.Token
	if in.Request.TokenSet {
		tok = in.Request.Token
	}

	out, label := d.dispatch(ctx, in, tok)
	d.metrics.ObserveRPC(label, out.Outcome, time.Since(start))
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, in DispatchInput, tok string) (DispatchOutput, string) {
	req := in.Request
	method := req.Method

	fail := func(ae *ApplicationError) DispatchOutput {
		return DispatchOutput{Body: encodeError(req.Version, ae), Token: tok, Outcome: ae.Name}
	}

	m, ok := d.reg.Lookup(method)
	if !ok {
		return fail(methodNotFound(method)), "unknown"
	}

	call, err := d.resolveCaller(ctx, in, tok)
	if err != nil {
		d.log.Error("rpc.identity.fail", "method", method, "err", err)
		return fail(exception(method)), method
	}

	if m.Require != "" && !call.Capabilities.Has(m.Require) {
		return fail(notAuthorized(method)), method
	}

	var handlerCall *Call
	if m.WantsContext {
		handlerCall = call
	}

	result, err := d.invoke(ctx, m, handlerCall, Args{Positional: req.Args, Keyword: req.Kwargs})
	if err != nil {
		if ae, ok := AsApplicationError(err); ok {
			return fail(ae), method
		}
		d.log.Error("rpc.call.fail", "method", method, "user", call.User, "err", err)
		return fail(exception(method)), method
	}

	body, err := encodeSuccess(req.Version, result)
	if err != nil {
		d.log.Error("rpc.encode.fail", "method", method, "err", err)
		return fail(exception(method)), method
	}

	return DispatchOutput{Body: body, Token: call.Token, Outcome: outcomeOK}, method
}

func (d *Dispatcher) resolveCaller(ctx context.Context, in DispatchInput, tok string) (*Call, error) {
	call := &Call{IP: in.IP, Token: tok, Request: in.HTTPRequest}
	if d.auth == nil || tok == "" {
		return call, nil
	}

	user, ok, err := d.auth.CheckToken(ctx, tok)
	if err != nil || !ok {
		return call, err
	}
	call.User = user

	caps, ok, err := d.auth.GetCapabilities(ctx, user)
	if err != nil {
		return nil, err
	}
	if ok {
		call.Capabilities = caps
	}
	return call, nil
}

func (d *Dispatcher) invoke(ctx context.Context, m Method, call *Call, args Args) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("rpc.call.panic", "method", m.Name, "panic", p, "stack", string(debug.Stack()))
			result, err = nil, errors.New("panic in handler")
		}
	}()
	return m.Handler(ctx, call, args)
}

// ServeHTTP serves the RPC endpoint.
//
// POST with a JSON content type dispatches a call. Anything else returns the sorted
// method names.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !isJSON(r.Header.Get("Content-Type")) {
		writeJSON(w, http.StatusOK, d.reg.Names())
		return
	}

	ck := d.CookieConfig()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBody))
	if err != nil {
		d.writeBadRequest(w, v1.DefaultVersion, "request body too large or unreadable")
		return
	}

	req, err := v1.ParseRequest(body, ck.Name)
	if err != nil {
		d.writeBadRequest(w, peekVersion(body), err.Error())
		return
	}

	inTok := ck.read(r)
	if req.TokenSet {
		inTok = req.Token
	}

	out := d.Dispatch(r.Context(), DispatchInput{
		Request:     req,
		Token:       ck.read(r),
		IP:          remoteIP(r),
		HTTPRequest: r,
	})

	switch {
	case out.Token != "":
		http.SetCookie(w, ck.tokenCookie(out.Token, d.now()))
	case inTok != "":
		http.SetCookie(w, ck.tokenCookie("", d.now()))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (d *Dispatcher) writeBadRequest(w http.ResponseWriter, version int, msg string) {
	d.metrics.ObserveRPC("unknown", v1.ErrBadRequest, 0)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(encodeError(version, badRequest(msg)))
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
