package authapi

import (
	"net/http/httptest"
	"testing"

	"swapi/cmd/internal/rpc"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r.Header.Set("X-Forwarded-For", "garbage, 203.0.113.9, 10.0.0.1")
	r.Header.Set("X-Real-IP", "198.51.100.4")

	assert.Equal(t, "10.0.0.7", clientIP(r, false).String(), "untrusted proxy")
	assert.Equal(t, "203.0.113.9", clientIP(r, true).String(), "trusted proxy")

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.4", clientIP(r, true).String(), "x-real-ip fallback")

	r.Header.Del("X-Real-IP")
	r.RemoteAddr = "not-an-addr"
	assert.Nil(t, clientIP(r, true))
}

func TestCallerIP_FallsBackToCallIP(t *testing.T) {
	h := &Handler{cfg: DefaultConfig()}

	assert.Empty(t, h.callerIP(nil))
	assert.Equal(t, "192.0.2.1", h.callerIP(&rpc.Call{IP: "192.0.2.1"}), "no request")

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "192.0.2.50:1000"
	assert.Equal(t, "192.0.2.50", h.callerIP(&rpc.Call{IP: "192.0.2.1", Request: r}), "request wins")
}
