package authclient

import (
	"errors"
	"fmt"
)

// ErrEmailNotVerified gates sign-in for accounts that have not confirmed
// their email address. No session is created when this is returned.
var ErrEmailNotVerified = errors.New("email not verified")

// ErrNoCurrentUser is returned by actions that require a signed-in provider
// user when none exists.
var ErrNoCurrentUser = errors.New("no user signed in")

// ErrSessionRejected is returned when the server refuses to create or
// confirm a session for an otherwise successful provider sign-in.
var ErrSessionRejected = errors.New("session rejected by server")

// ProviderErrorCode classifies identity provider failures.
type ProviderErrorCode string

const (
	ProviderInvalidCredentials ProviderErrorCode = "invalid_credentials"
	ProviderUserNotFound       ProviderErrorCode = "user_not_found"
	ProviderUserDisabled       ProviderErrorCode = "user_disabled"
	ProviderTooManyAttempts    ProviderErrorCode = "too_many_attempts"
	ProviderEmailExists        ProviderErrorCode = "email_exists"
	ProviderUnavailable        ProviderErrorCode = "unavailable"
)

// ProviderError wraps a failure from the identity provider's interactive
// flow with a stable classification code.
type ProviderError struct {
	Code    ProviderErrorCode
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("provider: %s", e.Code)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderCode extracts the classification code from an error chain,
// defaulting to ProviderUnavailable.
func ProviderCode(err error) ProviderErrorCode {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return ProviderUnavailable
}

// UserMessage maps an auth error to an actionable, user-facing message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmailNotVerified):
		return "Please verify your email before signing in"
	case errors.Is(err, ErrSessionRejected):
		return "Failed to create session"
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case ProviderInvalidCredentials:
			return "Invalid email or password"
		case ProviderUserNotFound:
			return "No account found for this email"
		case ProviderUserDisabled:
			return "This account has been disabled"
		case ProviderTooManyAttempts:
			return "Too many attempts, please try again later"
		case ProviderEmailExists:
			return "An account with this email already exists"
		}
	}
	return "Something went wrong, please try again"
}
