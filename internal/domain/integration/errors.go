package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Remote System Errors
// ---------------------------------------------------------------------------

var (
	// ErrAuthenticationFailed indicates bad or expired credentials, a failed
	// session refresh, or a webhook signature mismatch.
	ErrAuthenticationFailed = errors.New("integration: authentication failed")

	// ErrRateLimitExceeded indicates the per-system request budget for the
	// current window is exhausted.
	ErrRateLimitExceeded = errors.New("integration: rate limit exceeded")

	// ErrNetwork indicates a transport-level failure before an HTTP status
	// was received.
	ErrNetwork = errors.New("integration: network error")

	// ErrNotFound indicates a remote record does not exist. Lookup
	// operations translate it into an empty result instead of returning it.
	ErrNotFound = errors.New("integration: remote record not found")

	// ErrValidation indicates a malformed payload. Inbound webhook payloads
	// are handled permissively; this is reserved for requests the service
	// itself is about to send.
	ErrValidation = errors.New("integration: invalid payload")
)

// RemoteAPIError is a non-2xx response from one of the remote systems.
type RemoteAPIError struct {
	System string // "erp" or "crm"
	Status int
	Body   string
}

// Error implements the error interface.
func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("integration: %s request failed with status %d: %s", e.System, e.Status, e.Body)
}

// Unauthorized reports whether the remote rejected the session credentials.
func (e *RemoteAPIError) Unauthorized() bool {
	return e.Status == 401
}

// IsUnauthorized reports whether err is a remote 401. The request pipelines
// use it as the retry predicate for the single forced-refresh retry.
func IsUnauthorized(err error) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// IsRemoteNotFound reports whether err is a remote 404, which lookup
// operations map to an empty result.
func IsRemoteNotFound(err error) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
