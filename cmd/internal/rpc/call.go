package rpc

import (
	"net/http"

	"swapi/cmd/internal/auth/roles"
)

// Call is the caller context handed to methods that ask for it.
//
// Token is read-write: the value left here after the handler returns becomes the
// outgoing token (set as the cookie, or cleared).
type Call struct {
	IP           string
	User         string
	Capabilities roles.Set
	Token        string
	Request      *http.Request
}

// Anonymous reports whether no session token resolved to a user.
func (c *Call) Anonymous() bool { return c.User == "" }

// HasCapability reports whether the caller holds capability.
func (c *Call) HasCapability(capability string) bool {
	return c.Capabilities.Has(capability)
}
