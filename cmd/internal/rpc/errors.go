package rpc

import (
	"errors"
	"fmt"

	v1 "swapi/shared/contracts/rpc/v1"
)

// ApplicationError is an error a handler deliberately surfaces to the caller.
// Name and Message reach the client verbatim; any other error becomes an opaque Exception.
type ApplicationError struct {
	Name    string
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Errorf returns an ApplicationError with a formatted message.
func Errorf(name, format string, args ...any) *ApplicationError {
	return &ApplicationError{Name: name, Message: fmt.Sprintf(format, args...)}
}

// InvalidArguments reports a call whose arguments do not bind.
func InvalidArguments(format string, args ...any) *ApplicationError {
	return Errorf(v1.ErrInvalidArguments, format, args...)
}

// AsApplicationError unwraps err to an ApplicationError.
func AsApplicationError(err error) (*ApplicationError, bool) {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func notAuthorized(method string) *ApplicationError {
	return Errorf(v1.ErrNotAuthorized, "The current user cannot call method '%s'.", method)
}

func exception(method string) *ApplicationError {
	return Errorf(v1.ErrException, "An exception occured while calling method '%s'.", method)
}

func methodNotFound(method string) *ApplicationError {
	return Errorf(v1.ErrMethodNotFound, "Method '%s' does not exist.", method)
}

func badRequest(msg string) *ApplicationError {
	return &ApplicationError{Name: v1.ErrBadRequest, Message: msg}
}
