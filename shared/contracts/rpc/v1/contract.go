// Package v1 defines the swapi RPC wire contract.
//
// It is shared between the server and tooling so the envelope shapes stay authoritative.
package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Protocol versions carried in Request.Version.
const (
	// VersionLegacy answers with a bare result or a LegacyError.
	VersionLegacy = 1
	// VersionEnvelope answers with a Response envelope.
	VersionEnvelope = 2

	DefaultVersion = VersionLegacy
)

// DefaultTokenField is the body key (and cookie name) that carries the session token.
const DefaultTokenField = "token"

// Stable error names (wire-stable).
const (
	ErrNotAuthorized    = "NotAuthorized"
	ErrException        = "Exception"
	ErrMethodNotFound   = "MethodNotFound"
	ErrInvalidArguments = "InvalidArguments"
	ErrBadRequest       = "BadRequest"
	ErrRateLimited      = "RateLimited"
)

// Request is one RPC call.
// The token is keyed by the configured cookie name, so it is not a fixed struct field.
type Request struct {
	Method   string
	Args     []json.RawMessage
	Kwargs   map[string]json.RawMessage
	Token    string
	TokenSet bool
	Version  int
}

// ParseRequest decodes a request body. tokenField names the body key holding the token.
func ParseRequest(body []byte, tokenField string) (Request, error) {
	if strings.TrimSpace(tokenField) == "" {
		tokenField = DefaultTokenField
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if raw == nil {
		return Request{}, errors.New("request must be a JSON object")
	}

	req := Request{Version: DefaultVersion}

	if v, ok := raw["method"]; ok {
		if err := json.Unmarshal(v, &req.Method); err != nil {
			return Request{}, fmt.Errorf("invalid field: method: %w", err)
		}
	}
	if v, ok := raw["args"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.Args); err != nil {
			return Request{}, fmt.Errorf("invalid field: args: %w", err)
		}
	}
	if v, ok := raw["kwargs"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.Kwargs); err != nil {
			return Request{}, fmt.Errorf("invalid field: kwargs: %w", err)
		}
	}
	if v, ok := raw["version"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.Version); err != nil {
			return Request{}, fmt.Errorf("invalid field: version: %w", err)
		}
	}
	if v, ok := raw[tokenField]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.Token); err != nil {
			return Request{}, fmt.Errorf("invalid field: %s: %w", tokenField, err)
		}
		req.TokenSet = true
	}

	return req, req.Validate()
}

// Validate performs structural validation.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return errors.New("missing field: method")
	}
	if r.Version < VersionLegacy {
		return fmt.Errorf("unsupported protocol version: %d", r.Version)
	}
	return nil
}

// MarshalJSON encodes the request with the default token field.
func (r Request) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"method":  r.Method,
		"version": r.Version,
	}
	if r.Args != nil {
		out["args"] = r.Args
	} else {
		out["args"] = []json.RawMessage{}
	}
	if r.Kwargs != nil {
		out["kwargs"] = r.Kwargs
	}
	if r.TokenSet {
		out[DefaultTokenField] = r.Token
	}
	return json.Marshal(out)
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
