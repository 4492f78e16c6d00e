package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// Local-login failures. All three surface as 401 with a user-facing
	// message; the messages are deliberately distinct so the caller knows
	// whether to register, re-register, or retype the password.
	ErrNoSuchUser        = errors.New("no such user")
	ErrNoStoredPassword  = errors.New("no stored password")
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrProviderDenied covers every way an OAuth round-trip can fail at the
	// identity provider: the user clicked deny, the code exchange failed, or
	// the provider timed out. It surfaces as a redirect, never a JSON error.
	ErrProviderDenied = errors.New("provider denied")

	// ErrStoreUnavailable means the identity store rejected a read or write.
	ErrStoreUnavailable = errors.New("store unavailable")
)

type AppError struct {
	Err     error  // sentinel for errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// NoSuchUser is returned when a local login names an email nobody registered.
func NoSuchUser() *AppError {
	return &AppError{
		Err:     ErrNoSuchUser,
		Message: "No such user registered.",
	}
}

// NoStoredPassword is returned for records created before password storage
// was enabled — they exist but can never log in until they re-register.
func NoStoredPassword() *AppError {
	return &AppError{
		Err:     ErrNoStoredPassword,
		Message: "This user was registered before password saving was enabled. Please register again.",
	}
}

// InvalidCredential is returned when the submitted password does not match.
func InvalidCredential() *AppError {
	return &AppError{
		Err:     ErrInvalidCredential,
		Message: "Invalid password.",
	}
}

// ProviderDenied wraps a failure reported by (or while talking to) an
// external identity provider.
func ProviderDenied(provider string, err error) *AppError {
	return &AppError{
		Err:     ErrProviderDenied,
		Message: fmt.Sprintf("%s authentication failed", provider),
	}
}

// StoreUnavailable wraps an identity-store failure.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: "The user store is currently unavailable.",
	}
}
