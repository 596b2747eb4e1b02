package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls throttling of the unauthenticated session methods.
type Config struct {
	// TrustProxy takes the caller IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	SendOTPIPMax    int
	SendOTPIPWindow time.Duration

	LoginIPMax    int
	LoginIPWindow time.Duration
}

// DefaultConfig returns the throttle defaults.
func DefaultConfig() Config {
	return Config{
		SendOTPIPMax:    10,
		SendOTPIPWindow: 10 * time.Minute,
		LoginIPMax:      20,
		LoginIPWindow:   5 * time.Minute,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		TrustProxy:      envBool("SWAPI_AUTH_TRUST_PROXY", false),
		SendOTPIPMax:    envInt("SWAPI_AUTH_SEND_OTP_IP_MAX", def.SendOTPIPMax),
		SendOTPIPWindow: envDuration("SWAPI_AUTH_SEND_OTP_IP_WINDOW", def.SendOTPIPWindow),
		LoginIPMax:      envInt("SWAPI_AUTH_LOGIN_IP_MAX", def.LoginIPMax),
		LoginIPWindow:   envDuration("SWAPI_AUTH_LOGIN_IP_WINDOW", def.LoginIPWindow),
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
