package otp

import "errors"

// ErrWeakParams is returned when derivation parameters fall below the security floor.
var ErrWeakParams = errors.New("otp derivation parameters too weak")
