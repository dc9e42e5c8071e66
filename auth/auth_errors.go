package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRequired indicates there is no usable credential for the
	// host: none was ever stored, or the refresh token was rejected.
	ErrLoginRequired = errors.New("login required")

	// ErrAuthTimeout indicates the browser callback never arrived
	// within the login timeout.
	ErrAuthTimeout = errors.New("authorization timed out waiting for browser callback")

	// ErrAuthDenied indicates the user cancelled the authorization.
	ErrAuthDenied = errors.New("authorization denied")
)

// ProtocolError reports malformed data during the authorization flow,
// either from the authorization callback or from the service's auth
// configuration.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("authorization protocol error: %s", e.Reason)
}
