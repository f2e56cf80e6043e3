// Package apperr defines the error taxonomy shared by the messaging and
// notification components and its mapping onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth means the credential was missing, malformed or expired.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied means the caller is authenticated but is not a
	// participant of the target conversation.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound means the referenced conversation, message or
	// notification does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means a participant acted outside their permission.
	ErrForbidden = errors.New("forbidden")
	// ErrProtocol marks a malformed frame on an authorized connection.
	ErrProtocol = errors.New("protocol error")
	// ErrInvalid marks a request that failed validation.
	ErrInvalid = errors.New("invalid request")
)

// StoreError wraps a backing-store failure. Callers should treat it as
// retryable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError for op. A nil err stays nil, and errors
// that already belong to the taxonomy pass through unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomain(err) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStore reports whether err is a backing-store failure.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func isDomain(err error) bool {
	for _, target := range []error{ErrAuth, ErrAccessDenied, ErrNotFound, ErrForbidden, ErrProtocol, ErrInvalid} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HTTPStatus maps err onto the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case IsStore(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public returns a message that is safe to show to the client. Store and
// unexpected failures are not described in detail.
func Public(err error) string {
	switch {
	case err == nil:
		return ""
	case IsStore(err):
		return "temporarily unavailable, retry later"
	case isDomain(err):
		return err.Error()
	default:
		return "internal error"
	}
}
