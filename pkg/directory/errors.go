package directory

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error response from the directory API.
//
// Code mirrors the HTTP status of the response unless the server
// supplied a more specific one in the body.
type Error struct {
	Code    int    `json:"code"`    // Error code
	Message string `json:"message"` // Error message from the server
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("directory: error %d: %s", e.Code, e.Message)
}

// Is reports whether target is a directory error with the same code.
//
// This allows errors.Is(err, ErrNotFound) to work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary returns true if the request may succeed when repeated later.
//
// Rate limiting and all 5xx codes are considered temporary.
func (e *Error) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Predefined errors for common cases.
var (
	// ErrNotFound is returned when the requested channel does not exist.
	ErrNotFound = &Error{Code: http.StatusNotFound, Message: "not found"}

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("directory: invalid configuration")
)
