package awsrt

import (
	"errors"
	"fmt"
)

// ErrNoTransport is returned by Send when the client has no transport.
var ErrNoTransport = errors.New("awsrt: no transport configured")

// ErrorClassifier maps a wire error code to a typed service error. It
// reports false when the code is not one the service declares.
type ErrorClassifier func(code string, message *string) (error, bool)

// APIError is a service error no classifier recognized, or one raised by a
// transport before classification.
type APIError struct {
	Code       string
	Message    *string
	StatusCode int
}

func (e *APIError) Error() string {
	msg := FormatError(e.Code, e.Message)
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

// FormatError renders an error code with its optional message.
func FormatError(code string, message *string) string {
	if message == nil || *message == "" {
		return code
	}
	return code + ": " + *message
}
