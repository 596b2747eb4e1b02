package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	v1 "swapi/shared/contracts/rpc/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	d          *Dispatcher
	adminCalls atomic.Int32
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	ts := &testServer{}
	reg, err := NewRegistry(
		Method{
			Name: "echo",
			Handler: func(ctx context.Context, _ *Call, args Args) (any, error) {
				var s string
				if err := args.Bind([]string{"s"}, &s); err != nil {
					return nil, err
				}
				return s, nil
			},
		},
		Method{
			Name:    "adminOnly",
			Require: "accountmanager",
			Handler: func(ctx context.Context, _ *Call, _ Args) (any, error) {
				ts.adminCalls.Add(1)
				return "secret", nil
			},
		},
		Method{
			Name:         "rotate",
			WantsContext: true,
			Handler: func(ctx context.Context, call *Call, _ Args) (any, error) {
				call.Token = "rotated-tok"
				return map[string]bool{"success": true}, nil
			},
		},
		Method{
			Name:         "clear",
			WantsContext: true,
			Handler: func(ctx context.Context, call *Call, _ Args) (any, error) {
				call.Token = ""
				return nil, nil
			},
		},
		Method{
			Name: "peekCall",
			Handler: func(ctx context.Context, call *Call, _ Args) (any, error) {
				return call == nil, nil
			},
		},
		Method{
			Name: "appError",
			Handler: func(ctx context.Context, _ *Call, _ Args) (any, error) {
				return nil, Errorf("Teapot", "short and stout")
			},
		},
		Method{
			Name:         "failAfterRotate",
			WantsContext: true,
			Handler: func(ctx context.Context, call *Call, _ Args) (any, error) {
				call.Token = "should-not-leak"
				return nil, errBoom
			},
		},
		Method{
			Name: "panics",
			Handler: func(ctx context.Context, _ *Call, _ Args) (any, error) {
				panic("kaboom")
			},
		},
		Method{
			Name: "unencodable",
			Handler: func(ctx context.Context, _ *Call, _ Args) (any, error) {
				return func() {}, nil
			},
		},
	)
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := append([]Option{WithLogger(quietLogger()), WithClock(func() time.Time { return fixed })}, opts...)
	ts.d = NewDispatcher(reg, newFakeAuth(), all...)
	return ts
}

func post(t *testing.T, h http.Handler, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeV2(t *testing.T, rec *httptest.ResponseRecorder) v1.Response {
	t.Helper()
	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestServeHTTP_NonRPCReturnsMethodList(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, ts.d.Registry().Names(), names)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"echo"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	ts.d.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Contains(t, names, "getMethods")
}

func TestServeHTTP_VersionedEnvelopes(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"echo","args":["hi"]}`)
	assert.JSONEq(t, `"hi"`, rec.Body.String(), "v1 is the bare result")

	rec = post(t, ts.d, `{"method":"echo","kwargs":{"s":"hi"},"version":2}`)
	assert.JSONEq(t, `{"success":true,"result":"hi"}`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"appError","version":2}`)
	assert.JSONEq(t, `{"success":false,"error":"Teapot","error_message":"short and stout"}`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"appError"}`)
	assert.JSONEq(t, `{"SimpleWebAPIError":"Teapot","Message":"short and stout"}`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"clear","version":2}`)
	assert.JSONEq(t, `{"success":true,"result":null}`, rec.Body.String())
}

func TestServeHTTP_NotAuthorizedNeverInvokes(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"adminOnly","version":2}`)
	resp := decodeV2(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "NotAuthorized", resp.Error)
	assert.Equal(t, "The current user cannot call method 'adminOnly'.", resp.ErrorMessage)

	rec = post(t, ts.d, `{"method":"adminOnly","version":2,"token":"user-tok"}`)
	assert.Equal(t, "NotAuthorized", decodeV2(t, rec).Error)
	assert.Equal(t, int32(0), ts.adminCalls.Load())

	rec = post(t, ts.d, `{"method":"adminOnly","version":2,"token":"admin-tok"}`)
	resp = decodeV2(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int32(1), ts.adminCalls.Load())
}

func TestServeHTTP_BodyTokenBeatsCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"adminOnly","version":2,"token":"user-tok"}`,
		&http.Cookie{Name: "token", Value: "admin-tok"})
	assert.Equal(t, "NotAuthorized", decodeV2(t, rec).Error)

	rec = post(t, ts.d, `{"method":"adminOnly","version":2}`,
		&http.Cookie{Name: "token", Value: "admin-tok"})
	assert.True(t, decodeV2(t, rec).Success)
}

func TestServeHTTP_CookieNameIsBodyKey(t *testing.T) {
	ts := newTestServer(t, WithCookie(CookieConfig{Name: "sid", Secure: true, Path: "/api"}))

	rec := post(t, ts.d, `{"method":"adminOnly","version":2,"sid":"admin-tok"}`)
	assert.True(t, decodeV2(t, rec).Success)

	c := findCookie(rec, "sid")
	require.NotNil(t, c)
	assert.Equal(t, "admin-tok", c.Value)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/api", c.Path)

	rec = post(t, ts.d, `{"method":"adminOnly","version":2,"token":"admin-tok"}`)
	assert.Equal(t, "NotAuthorized", decodeV2(t, rec).Error, "token key follows the cookie name")
}

func TestServeHTTP_TokenRotationSetsCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"rotate","version":2}`)
	c := findCookie(rec, "token")
	require.NotNil(t, c)
	assert.Equal(t, "rotated-tok", c.Value)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(31557600*time.Second), c.Expires.UTC())
}

func TestServeHTTP_ClearedTokenExpiresCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"clear"}`, &http.Cookie{Name: "token", Value: "user-tok"})
	c := findCookie(rec, "token")
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)

	rec = post(t, ts.d, `{"method":"clear"}`)
	assert.Nil(t, findCookie(rec, "token"), "no cookie to clear")
}

func TestServeHTTP_UnchangedTokenIsRefreshed(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"echo","args":["x"]}`, &http.Cookie{Name: "token", Value: "user-tok"})
	c := findCookie(rec, "token")
	require.NotNil(t, c)
	assert.Equal(t, "user-tok", c.Value)
}

func TestServeHTTP_WantsContext(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"peekCall"}`)
	assert.JSONEq(t, `true`, rec.Body.String(), "call is nil unless requested")
}

func TestServeHTTP_FailuresAreOpaque(t *testing.T) {
	ts := newTestServer(t)

	for _, m := range []string{"failAfterRotate", "panics", "unencodable"} {
		rec := post(t, ts.d, `{"method":"`+m+`","version":2}`, &http.Cookie{Name: "token", Value: "user-tok"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeV2(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "Exception", resp.Error, m)
		assert.Equal(t, "An exception occured while calling method '"+m+"'.", resp.ErrorMessage)
		assert.NotContains(t, rec.Body.String(), "boom")
		assert.NotContains(t, rec.Body.String(), "kaboom")

		c := findCookie(rec, "token")
		require.NotNil(t, c)
		assert.Equal(t, "user-tok", c.Value, "failed calls keep the inbound token")
	}
}

func TestServeHTTP_IdentityErrorIsException(t *testing.T) {
	ts := newTestServer(t)
	ts.d.auth = &fakeAuth{err: errBoom}

	rec := post(t, ts.d, `{"method":"echo","args":["x"],"version":2,"token":"t"}`)
	assert.Equal(t, "Exception", decodeV2(t, rec).Error)
}

func TestServeHTTP_UnknownMethod(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"nope","version":2}`)
	resp := decodeV2(t, rec)
	assert.Equal(t, "MethodNotFound", resp.Error)
	assert.Contains(t, resp.ErrorMessage, "'nope'")
}

func TestServeHTTP_MalformedRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var legacy v1.LegacyError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &legacy))
	assert.Equal(t, "BadRequest", legacy.SimpleWebAPIError)

	rec = post(t, ts.d, `{"args":[],"version":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadRequest", decodeV2(t, rec).Error)

	rec = post(t, ts.d, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	small := newTestServer(t, WithMaxBodyBytes(8))
	rec = post(t, small.d, `{"method":"echo","args":["long enough"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuiltins(t *testing.T) {
	ts := newTestServer(t)

	rec := post(t, ts.d, `{"method":"getDetails","version":2}`)
	assert.JSONEq(t, `{"success":true,"result":{"capabilities":[],"user":null}}`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"getDetails","version":2,"token":"admin-tok"}`)
	assert.JSONEq(t, `{"success":true,"result":{"capabilities":["accountmanager","root"],"user":"admin@example.com"}}`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"hasCapability","args":["root"],"token":"admin-tok"}`)
	assert.JSONEq(t, `true`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"hasCapability","kwargs":{"capability":"root"}}`)
	assert.JSONEq(t, `false`, rec.Body.String())

	rec = post(t, ts.d, `{"method":"hasCapability","version":2}`)
	assert.Equal(t, "InvalidArguments", decodeV2(t, rec).Error)

	rec = post(t, ts.d, `{"method":"getMethods","version":2}`)
	resp := decodeV2(t, rec)
	var names []string
	require.NoError(t, json.Unmarshal(resp.Result, &names))
	assert.Equal(t, ts.d.Registry().Names(), names)
}

func TestDispatch_DirectUse(t *testing.T) {
	ts := newTestServer(t)

	out := ts.d.Dispatch(context.Background(), DispatchInput{
		Request: v1.Request{Method: "rotate", Version: 2},
		Token:   "user-tok",
	})
	assert.Equal(t, "rotated-tok", out.Token)
	assert.Equal(t, "ok", out.Outcome)

	out = ts.d.Dispatch(context.Background(), DispatchInput{
		Request: v1.Request{Method: "adminOnly", Version: 2, Token: "", TokenSet: true},
		Token:   "admin-tok",
	})
	assert.Equal(t, "NotAuthorized", out.Outcome, "explicit empty body token overrides the cookie")
}
