package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// The closed error taxonomy shared by all orchestrators. The gateway itself
// only produces ErrTimeout, ErrUnreachable, ErrParse, and *HTTPError;
// the local sentinels are defined here so classification lives in one place.
var (
	// ErrValidation marks local pre-network failures (bad file type or size,
	// malformed URL, text too short, empty send). Never produced by the
	// gateway; a validation failure must not reach it.
	ErrValidation = errors.New("validation error")
	// ErrTimeout marks calls cancelled by the per-call deadline.
	ErrTimeout = errors.New("timeout")
	// ErrUnreachable marks calls where no connection could be established.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrParse marks malformed success bodies.
	ErrParse = errors.New("malformed response")
	// ErrPermissionDenied marks refused microphone access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupportedFormat marks audio containers outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// HTTPError reports a response where the server answered but indicated
// failure.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// classify maps a transport-level error onto the taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Describe renders a taxonomy error as a display-ready sentence.
func Describe(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "The request timed out. The backend may be busy; please try again."
	case errors.Is(err, ErrUnreachable):
		return "Could not reach the backend. Check that the server is running and the base URL is correct."
	case errors.As(err, &httpErr):
		if strings.TrimSpace(httpErr.Detail) != "" {
			return fmt.Sprintf("The backend reported an error (%d): %s", httpErr.Status, httpErr.Detail)
		}
		return fmt.Sprintf("The backend reported an error (%d).", httpErr.Status)
	case errors.Is(err, ErrParse):
		return "The backend returned a response that could not be understood."
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return err.Error()
	}
}
