// Package main provides a CI-friendly smoke test of the swapi login flow.
//
// It validates, over HTTP or WebSocket:
//   - getMethods lists the session methods
//   - send_otp returns a correlation token
//   - login with the mailed code returns a new session token
//   - getDetails reports the logged-in user
//   - logoff drops the session
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	v1 "swapi/shared/contracts/rpc/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocol = "swapi.rpc.v2"
	maxReadBytes  = 1 << 20 // 1MiB
)

// caller performs one v2 call. Implementations carry the session token between calls.
type caller interface {
	call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
	setToken(tok string)
}

type httpCaller struct {
	url    string
	client *http.Client
	token  string
}

func (c *httpCaller) setToken(tok string) { c.token = tok }

func (c *httpCaller) call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(newRequest(method, c.token, args))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxReadBytes))
	if err != nil {
		return nil, err
	}
	return decodeResponse(b)
}

type wsCaller struct {
	conn  *websocket.Conn
	token string
	sent  bool
}

// setToken sends the token with the next frame only; the connection keeps it afterwards.
func (c *wsCaller) setToken(tok string) {
	c.token = tok
	c.sent = false
}

func (c *wsCaller) call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	req := newRequest(method, "", args)
	if !c.sent {
		req.Token, req.TokenSet = c.token, true
		c.sent = true
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return decodeResponse(data)
}

func main() {
	var (
		rpcURL    = flag.String("url", "http://127.0.0.1:8080/", "RPC endpoint (http/https)")
		transport = flag.String("transport", "http", "Transport: http or ws")
		origin    = flag.String("origin", "http://localhost", "Origin header for the WS handshake")
		email     = flag.String("email", "", "User to log in (required)")
		code      = flag.String("code", "", "OTP code; prompted on stdin when empty")
		timeout   = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if strings.TrimSpace(*email) == "" {
		fatalf("-email is required")
	}
	if err := validateHTTPURL(*rpcURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()

	var c caller
	switch *transport {
	case "http":
		c = &httpCaller{url: *rpcURL, client: &http.Client{Timeout: *timeout}}
	case "ws":
		conn := mustConnect(root, wsURLFor(*rpcURL), *origin, *timeout)
		defer closeWS(conn)
		c = &wsCaller{conn: conn, sent: true}
	default:
		fatalf("unknown -transport %q", *transport)
	}

	var methods []string
	mustCall(root, c, *timeout, &methods, "getMethods")
	for _, want := range []string{"send_otp", "login", "logoff"} {
		if !slices.Contains(methods, want) {
			fatalf("getMethods: %q missing from %v", want, methods)
		}
	}

	var correlation string
	mustCall(root, c, *timeout, &correlation, "send_otp", *email)
	if correlation == "" {
		fatalf("send_otp: empty correlation token")
	}
	c.setToken(correlation)
	if *verbose {
		fmt.Printf("otp sent to %s\n", *email)
	}

	otp := strings.TrimSpace(*code)
	if otp == "" {
		otp = prompt("OTP: ")
	}

	var login v1.LoginResult
	mustCall(root, c, *timeout, &login, "login", *email, otp)
	if !login.Success {
		fatalf("login: %s", login.Error)
	}
	if login.Token == "" || login.Token == correlation {
		fatalf("login: token was not rotated")
	}
	c.setToken(login.Token)

	var details v1.Details
	mustCall(root, c, *timeout, &details, "getDetails")
	if details.User == nil || !strings.EqualFold(*details.User, *email) {
		fatalf("getDetails: unexpected user %v", details.User)
	}
	if *verbose {
		fmt.Printf("logged in as %s capabilities=%v\n", *details.User, details.Capabilities)
	}

	mustCall(root, c, *timeout, nil, "logoff")
	c.setToken("")

	details = v1.Details{}
	mustCall(root, c, *timeout, &details, "getDetails")
	if details.User != nil {
		fatalf("getDetails after logoff: still %q", *details.User)
	}

	fmt.Printf("OK: transport=%s user=%s token=%s\n", *transport, *email, login.Token)
}

func newRequest(method, token string, args []any) v1.Request {
	req := v1.Request{Method: method, Version: v1.VersionEnvelope, Args: make([]json.RawMessage, 0, len(args))}
	for _, a := range args {
		req.Args = append(req.Args, mustJSON(a))
	}
	if token != "" {
		req.Token, req.TokenSet = token, true
	}
	return req
}

func decodeResponse(b []byte) (json.RawMessage, error) {
	var res v1.Response
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%s: %s", res.Error, res.ErrorMessage)
	}
	return res.Result, nil
}

func mustCall(parent context.Context, c caller, stepTimeout time.Duration, out any, method string, args ...any) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	raw, err := c.call(ctx, method, args...)
	if err != nil {
		fatalf("%s: %v", method, err)
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		fatalf("%s: unmarshal result %s: %v", method, raw, err)
	}
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", wsURL, err)
	}
	if got := conn.Subprotocol(); got != wsSubprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, wsSubprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// wsURLFor maps the RPC URL onto the /ws endpoint of the same server.
func wsURLFor(raw string) string {
	u, _ := url.Parse(raw)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

func prompt(label string) string {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fatalf("read stdin: %v", err)
	}
	return strings.TrimSpace(line)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
