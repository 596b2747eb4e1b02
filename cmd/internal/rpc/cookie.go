package rpc

import (
	"net/http"
	"strings"
	"time"

	v1 "swapi/shared/contracts/rpc/v1"
)

// DefaultCookieMaxAge is the session cookie lifetime (one Julian year).
const DefaultCookieMaxAge = 31557600 * time.Second

// CookieConfig controls the session cookie. Name is also the body key carrying the token.
type CookieConfig struct {
	Name   string
	Secure bool
	Path   string
	MaxAge time.Duration
}

// DefaultCookieConfig returns the defaults: "token" on "/", not Secure.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:   v1.DefaultTokenField,
		Path:   "/",
		MaxAge: DefaultCookieMaxAge,
	}
}

func (c CookieConfig) normalized() CookieConfig {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = v1.DefaultTokenField
	}
	if strings.TrimSpace(c.Path) == "" {
		c.Path = "/"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultCookieMaxAge
	}
	return c
}

// tokenCookie returns the cookie carrying token; an empty token yields an expiring cookie.
func (c CookieConfig) tokenCookie(token string, now time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		ck.Expires = time.Unix(0, 0)
		ck.MaxAge = -1
		return ck
	}
	ck.Expires = now.Add(c.MaxAge)
	return ck
}

func (c CookieConfig) read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
