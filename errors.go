package watsonx

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamNotReady indicates Message() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrJobFailed indicates an asynchronous job reached the failed state.
	ErrJobFailed = errors.New("job failed")
)

// APIError is the typed error for non-2xx responses from the watsonx.ai API.
// It carries the HTTP status code and the vendor error details verbatim.
// Requests are not retried automatically.
type APIError struct {
	StatusCode int
	Trace      string
	Errors     []ErrorDetail
}

// ErrorDetail is one entry of the vendor error payload.
type ErrorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info,omitempty"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "watsonx: HTTP %d", e.StatusCode)
	for _, d := range e.Errors {
		fmt.Fprintf(&b, ": %s: %s", d.Code, d.Message)
	}
	if e.Trace != "" {
		fmt.Fprintf(&b, " (trace %s)", e.Trace)
	}
	return b.String()
}

// HasCode reports whether the vendor payload contains the given error code.
func (e *APIError) HasCode(code string) bool {
	for _, d := range e.Errors {
		if d.Code == code {
			return true
		}
	}
	return false
}
