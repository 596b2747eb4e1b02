package rpc

import (
	"encoding/json"

	v1 "swapi/shared/contracts/rpc/v1"
)

// encodeSuccess renders a result for the requested protocol version.
func encodeSuccess(version int, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if version < v1.VersionEnvelope {
		return raw, nil
	}
	return json.Marshal(v1.Response{Success: true, Result: raw})
}

// encodeError renders an application error for the requested protocol version.
func encodeError(version int, ae *ApplicationError) []byte {
	var (
		b   []byte
		err error
	)
	if version < v1.VersionEnvelope {
		b, err = json.Marshal(v1.LegacyError{SimpleWebAPIError: ae.Name, Message: ae.Message})
	} else {
		b, err = json.Marshal(v1.Response{Success: false, Error: ae.Name, ErrorMessage: ae.Message})
	}
	if err != nil {
		// Two string fields cannot fail to marshal.
		panic(err)
	}
	return b
}

// peekVersion extracts the protocol version from a body that failed full parsing.
func peekVersion(body []byte) int {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(body, &head); err != nil || head.Version < v1.VersionLegacy {
		return v1.DefaultVersion
	}
	return head.Version
}
