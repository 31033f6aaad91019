package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthExpired    = fmt.Errorf("credential expired, re-authentication required")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrUpstreamAPI = fmt.Errorf("upstream API error")
	ErrTimeout     = fmt.Errorf("operation timed out")

	// Domain errors
	ErrNotFound         = fmt.Errorf("not found")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrAlreadyTracking  = fmt.Errorf("playlist is already being tracked")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// APIError carries the status code and message of a failed upstream call.
//
// Wraps [ErrUpstreamAPI] so callers can match the kind with [errors.Is] and
// still inspect the status when they need to.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream API error: status %d", e.Status)
	}
	return fmt.Sprintf("upstream API error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrUpstreamAPI
}
