package identity

import (
	"time"

	"swapi/cmd/identity/ids"
)

// NewULID returns a new ULID (26-char string) for user, token and challenge rows.
func NewULID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
