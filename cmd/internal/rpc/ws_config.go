package rpc

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// WSConfig holds the WebSocket gateway knobs.
type WSConfig struct {
	OriginRequired bool
	AllowedOrigins []string

	ReadLimit       int64
	ReadIdleTimeout time.Duration
	WriteTimeout    time.Duration

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration
}

// DefaultWSConfig returns secure-by-default settings: Origin required, localhost only.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		OriginRequired:   true,
		AllowedOrigins:   []string{"http://localhost", "http://127.0.0.1"},
		ReadLimit:        64 << 10,
		ReadIdleTimeout:  2 * time.Minute,
		WriteTimeout:     5 * time.Second,
		HeartbeatEvery:   25 * time.Second,
		HeartbeatTimeout: 5 * time.Second,
		RateEvents:       120,
		RateWindow:       10 * time.Second,
	}
}

// LoadWSConfigFromEnv overlays SWAPI_WS_* variables on the defaults.
// Invalid values keep the default.
func LoadWSConfigFromEnv() WSConfig {
	c := DefaultWSConfig()

	c.OriginRequired = envBoolWS("SWAPI_WS_ORIGIN_REQUIRED", c.OriginRequired)
	c.AllowedOrigins = envCSVWS("SWAPI_WS_ALLOWED_ORIGINS", c.AllowedOrigins)
	c.ReadLimit = int64(envIntWS("SWAPI_WS_READ_LIMIT", int(c.ReadLimit)))
	c.ReadIdleTimeout = envDurationWS("SWAPI_WS_READ_IDLE_TIMEOUT", c.ReadIdleTimeout)
	c.WriteTimeout = envDurationWS("SWAPI_WS_WRITE_TIMEOUT", c.WriteTimeout)
	c.HeartbeatEvery = envDurationWS("SWAPI_WS_HEARTBEAT_INTERVAL", c.HeartbeatEvery)
	c.HeartbeatTimeout = envDurationWS("SWAPI_WS_HEARTBEAT_TIMEOUT", c.HeartbeatTimeout)
	c.RateEvents = envIntWS("SWAPI_WS_RATE_EVENTS", c.RateEvents)
	c.RateWindow = envDurationWS("SWAPI_WS_RATE_WINDOW", c.RateWindow)

	return c
}

func envBoolWS(key string, def bool) bool {
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

func envIntWS(key string, def int) int {
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

func envDurationWS(key string, def time.Duration) time.Duration {
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

func envCSVWS(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
