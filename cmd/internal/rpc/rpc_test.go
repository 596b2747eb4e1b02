package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"swapi/cmd/internal/auth/roles"
)

type fakeAuth struct {
	tokens map[string]string
	caps   map[string]roles.Set
	err    error
}

func (f *fakeAuth) CheckToken(_ context.Context, raw string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	u, ok := f.tokens[raw]
	return u, ok, nil
}

func (f *fakeAuth) GetCapabilities(_ context.Context, user string) (roles.Set, bool, error) {
	c, ok := f.caps[user]
	return c, ok, nil
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		tokens: map[string]string{
			"admin-tok": "admin@example.com",
			"user-tok":  "user@example.com",
		},
		caps: map[string]roles.Set{
			"admin@example.com": roles.NewSet("root", "accountmanager"),
			"user@example.com":  roles.NewSet("user"),
		},
	}
}

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
