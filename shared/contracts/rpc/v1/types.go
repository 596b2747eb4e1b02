package v1

import "encoding/json"

// Response is the protocol v2 envelope.
// Result is always present on success (JSON null for no value).
type Response struct {
	Success      bool            `json:"success"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// LegacyError is the protocol v1 failure shape.
type LegacyError struct {
	SimpleWebAPIError string `json:"SimpleWebAPIError"`
	Message           string `json:"Message"`
}

// NullResult is the encoded form of an empty result.
var NullResult = json.RawMessage("null")

// Details is the result of the getDetails built-in.
type Details struct {
	Capabilities []string `json:"capabilities"`
	User         *string  `json:"user"`
}

// LoginResult is the result of the login method.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}
