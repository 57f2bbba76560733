package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal gateway
var (
	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Login flow errors
	ErrLoginFailed         = errors.New("login failed")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrMissingIDToken      = errors.New("id_token missing from token response")
	ErrTransactionNotFound = errors.New("login transaction not found")

	// General errors
	ErrNotFound = errors.New("not found")
)

// ConfigurationError reports missing or invalid required settings. It is fatal
// at startup and never recovered at request time.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return e.Msg
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err's chain contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// RequestError reports a downstream HTTP, network or payload-validation
// failure. It carries the response status and payload (when present) and the
// underlying cause so callers can pattern-match on the taxonomy rather than
// on transport specifics.
type RequestError struct {
	Msg     string
	Status  int
	Payload interface{}
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause.Error())
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// IsRequestError reports whether err's chain contains a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
