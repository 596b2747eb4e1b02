package identity

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ClassifyUniqueViolation maps a Postgres unique_violation to a logical field name.
// Prefer stable constraint names; fall back to substring matching.
func ClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username":
		return "username", true
	case "uq_tokens_token_hash", "uq_challenges_token_hash":
		return "token_hash", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "token"):
			return "token_hash", true
		default:
			return "unique", true
		}
	}
}

// IsForeignKeyViolation reports whether err is a Postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503"
}
