package gate

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by SessionStore.ResolveSession for tokens
// that are unknown or already consumed. Callers treat it as "already
// processed or never requested", not as an alarm.
var ErrSessionNotFound = errors.New("verification session not found")

// ErrInvalidSession is the orchestrator-level view of ErrSessionNotFound:
// the OAuth callback carried a state token this service never issued, or
// one that was already consumed.
var ErrInvalidSession = errors.New("invalid or already consumed state token")

// ErrProviderUnavailable means the requested provider adapter is not
// configured (missing credentials); verification cannot start.
var ErrProviderUnavailable = errors.New("verification unavailable for this provider")

// AuthError wraps a provider rejection of a code or credential.
type AuthError struct {
	Provider Provider
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. Fatal for the current request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExternalServiceError wraps a failed chat-platform call.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("chat %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
