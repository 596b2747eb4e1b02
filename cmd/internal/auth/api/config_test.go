package authapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), LoadConfigFromEnv())
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("SWAPI_AUTH_TRUST_PROXY", "true")
	t.Setenv("SWAPI_AUTH_SEND_OTP_IP_MAX", "3")
	t.Setenv("SWAPI_AUTH_SEND_OTP_IP_WINDOW", "1m")
	t.Setenv("SWAPI_AUTH_LOGIN_IP_MAX", "-4")
	t.Setenv("SWAPI_AUTH_LOGIN_IP_WINDOW", "soon")

	cfg := LoadConfigFromEnv()

	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, 3, cfg.SendOTPIPMax)
	assert.Equal(t, time.Minute, cfg.SendOTPIPWindow)
	assert.Equal(t, 20, cfg.LoginIPMax, "invalid values keep defaults")
	assert.Equal(t, 5*time.Minute, cfg.LoginIPWindow, "invalid values keep defaults")
}
