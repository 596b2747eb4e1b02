package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newTestApp(t *testing.T, settingsFile string, mutate func(*Config)) *App {
	t.Helper()
	t.Setenv("SWAPI_TOKEN_HMAC_KEY", strings.Repeat("k", 32))
	t.Setenv("SWAPI_NOTIFY_DEBUG", "")

	cfg := Config{
		HTTPAddr:     "127.0.0.1:0",
		MaxBodyBytes: 1 << 20,
		SettingsFile: settingsFile,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_RequiresHMACKey(t *testing.T) {
	t.Setenv("SWAPI_TOKEN_HMAC_KEY", "")
	t.Setenv("SWAPI_TOKEN_HMAC_KEY_FILE", "")

	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "SWAPI_TOKEN_HMAC_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestNew_RejectsShortHMACKey(t *testing.T) {
	t.Setenv("SWAPI_TOKEN_HMAC_KEY", "short")

	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("expected short key error, got %v", err)
	}
}

func TestHandler_Routes(t *testing.T) {
	a := newTestApp(t, "", nil)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", res.StatusCode)
	}
	if res.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("missing %s header", RequestIDHeader)
	}
	if got := res.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}

	res, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	var names []string
	err = json.NewDecoder(res.Body).Decode(&names)
	_ = res.Body.Close()
	if err != nil {
		t.Fatalf("decode method list: %v", err)
	}
	if !slices.Contains(names, "login") || !slices.Contains(names, "getMethods") {
		t.Fatalf("method list missing entries: %v", names)
	}

	res, err = http.Post(srv.URL+"/rpc", "application/json", strings.NewReader(`{"method":"getDetails","version":2}`))
	if err != nil {
		t.Fatalf("POST /rpc: %v", err)
	}
	var env map[string]any
	err = json.NewDecoder(res.Body).Decode(&env)
	_ = res.Body.Close()
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env["success"] != true {
		t.Fatalf("getDetails failed: %v", env)
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if !strings.Contains(string(body), "swapi_rpc_calls_total") {
		t.Fatalf("metrics output missing swapi_rpc_calls_total")
	}
}

func TestHandler_WebSocketThroughMiddleware(t *testing.T) {
	a := newTestApp(t, "", func(c *Config) { c.CORSAllowedOrigins = []string{"https://app.example.com"} })
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := http.Header{}
	h.Set("Origin", "http://localhost")
	conn, res, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{
		Subprotocols: []string{"swapi.rpc.v2"},
		HTTPHeader:   h,
	})
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"method":"getMethods","version":2}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env struct {
		Success bool     `json:"success"`
		Result  []string `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || !slices.Contains(env.Result, "send_otp") {
		t.Fatalf("unexpected response: %s", data)
	}
}

func TestHandler_ReadinessRequiresDB(t *testing.T) {
	a := newTestApp(t, "", func(c *Config) { c.ReadinessRequireDB = true })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rec.Code)
	}
}

func TestReload_AppliesSettings(t *testing.T) {
	p := writeSettings(t, "default_role: user\ncookie:\n  name: token\n")
	a := newTestApp(t, p, nil)
	if got := a.dispatcher.CookieConfig().Name; got != "token" {
		t.Fatalf("initial cookie name=%q", got)
	}

	if err := writeFile(p, `
default_role: member
admin_user: root@example.com
roles:
  root: [member]
  member: []
cookie:
  name: sid
`); err != nil {
		t.Fatalf("rewrite settings: %v", err)
	}
	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := a.dispatcher.CookieConfig().Name; got != "sid" {
		t.Fatalf("cookie name=%q", got)
	}
	if got := a.sessions.ListRoles(); !slices.Equal(got, []string{"member", "root"}) {
		t.Fatalf("roles=%v", got)
	}

	u, err := a.sessions.GetUser(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Role != "root" {
		t.Fatalf("admin role=%q", u.Role)
	}
}

func TestReload_InvalidFileKeepsCurrent(t *testing.T) {
	p := writeSettings(t, "cookie:\n  name: sid\n")
	a := newTestApp(t, p, nil)

	if err := writeFile(p, "cookie:\n  name: other\nbogus: 1\n"); err != nil {
		t.Fatalf("rewrite settings: %v", err)
	}
	if err := a.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}

	if got := a.dispatcher.CookieConfig().Name; got != "sid" {
		t.Fatalf("cookie name=%q", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, "", func(c *Config) { c.SweepInterval = 10 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
