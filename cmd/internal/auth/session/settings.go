package session

import (
	"fmt"
	"strings"

	"swapi/cmd/identity"
	"swapi/cmd/internal/auth/roles"
)

// RootRole is granted to the configured admin user.
const RootRole = "root"

// Settings is the domain configuration applied through Manager.ApplySettings.
type Settings struct {
	// DefaultRole is assigned to users auto-registered by SendOTP.
	DefaultRole string
	// AdminUser is registered with RootRole on every apply; empty disables it.
	AdminUser string
	// AdminEmail is quoted in the OTP mail as the abuse contact.
	AdminEmail string
	// Roles is the role-inclusion graph.
	Roles roles.Graph
}

// Validate rejects settings that cannot be applied.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.DefaultRole) == "" {
		return fmt.Errorf("%w: default_role is required", ErrConfig)
	}
	for role, inc := range s.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("%w: empty role name", ErrConfig)
		}
		for _, child := range inc {
			if strings.TrimSpace(child) == "" {
				return fmt.Errorf("%w: role %q includes an empty name", ErrConfig, role)
			}
		}
	}
	if u := identity.NormalizeUsername(s.AdminUser); u != "" && !identity.ValidUsername(u) {
		return fmt.Errorf("%w: admin_user is too long", ErrConfig)
	}
	return nil
}
