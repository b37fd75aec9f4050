package jsonbody

import "errors"

// Failure taxonomy for one request cycle. Every failure is local to its
// cycle: the reusable buffer is released unconditionally on exit, so no
// failure can corrupt the next request.
var (
	// ErrUnconfigured means no consumer callback is registered. This is a
	// setup error, not a data error.
	ErrUnconfigured = errors.New("no consumer configured")
	// ErrTooLarge means the announced body length exceeds MaxContentLength.
	// The body is rejected before allocation.
	ErrTooLarge = errors.New("content length exceeds maximum")
	// ErrNotReady means the body buffer was never successfully allocated or
	// filled: missing body, zero length, or a failed allocation.
	ErrNotReady = errors.New("request body missing or invalid")
	// ErrMalformed means the accumulated bytes did not parse as JSON.
	ErrMalformed = errors.New("malformed JSON payload")
)

// StatusOf maps a request-cycle failure to the HTTP status surfaced to the
// transport: 500 for setup errors, 413 for oversize bodies, 400 for
// anything wrong with the body itself.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrUnconfigured):
		return 500
	case errors.Is(err, ErrTooLarge):
		return 413
	default:
		return 400
	}
}

// statusMessage is the plain-text body sent with a failure status.
func statusMessage(status int) string {
	switch status {
	case 500:
		return "No handler configured"
	case 413:
		return "Content too large"
	default:
		return "Invalid request body"
	}
}
