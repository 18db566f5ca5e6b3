package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned by every call when no backend URL is set.
// It is immediate and involves no I/O.
var ErrNotConfigured = errors.New("remote sync not configured")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

// AuthError indicates that the session or token was rejected (401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "auth error: " + e.Message
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// IsRejected reports whether the backend refused the request itself, so
// sending it again unchanged cannot succeed. That is any 4xx other than
// 401, 404, 408 and 429.
func IsRejected(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code < 400 || statusErr.Code >= 500 {
		return false
	}
	switch statusErr.Code {
	case http.StatusUnauthorized, http.StatusNotFound, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return true
}
