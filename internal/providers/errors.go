package providers

import (
	"errors"
	"fmt"
)

// APIError is a non-success HTTP response from an external service.
// Body is kept verbatim so callers can surface it to the user.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: %d, %s", e.StatusCode, e.Body)
}

// IsAPIError reports whether err wraps an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
