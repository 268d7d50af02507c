package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport wraps failures that never produced an HTTP response.
	ErrTransport = errors.New("scoring api unreachable")
	// ErrTimeout is returned when a request exceeds the client timeout.
	ErrTimeout = errors.New("scoring api request timed out")
)

// APIError is returned for every failed call. StatusCode is 0 when the
// request never got a response (transport failure or timeout).
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
	cause      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "scoring api %d", e.StatusCode)
	} else {
		b.WriteString("scoring api")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Errors) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Errors, "; "))
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError
}
