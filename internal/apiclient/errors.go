package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// NetworkErrorMessage is shown when the backend could not be reached at all.
const NetworkErrorMessage = "Network error. Please check your connection."

var (
	// ErrSessionExpired matches any APIError with status 401. The session in
	// context has already been cleared when it is returned.
	ErrSessionExpired = errors.New("apiclient: session expired")

	// ErrNetwork matches any APIError with status 0 (no response received).
	ErrNetwork = errors.New("apiclient: network error")
)

// APIError is the normalized failure of a backend call.
type APIError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	// Message is the server's detail field, else the whole body serialized.
	Message string
	// Data is the decoded error body: JSON values as decoded by
	// encoding/json, text bodies as a string, nil for network failures.
	Data any

	cause error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.cause != nil {
			return fmt.Sprintf("apiclient: %s (%v)", e.Message, e.cause)
		}
		return "apiclient: " + e.Message
	}
	return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Status == 401
	case ErrNetwork:
		return e.Status == 0
	}
	return false
}

func (e *APIError) Unwrap() error { return e.cause }

// Message returns the human-readable text for err: the APIError message when
// there is one, else fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// AsAPIError unwraps err into an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
