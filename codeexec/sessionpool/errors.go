package sessionpool

import "fmt"

// ServiceError carries the HTTP status and service-reported message of a
// failed session pool request.
type ServiceError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("session pool request failed: status %d: %s", e.StatusCode, e.Message)
}

// retryable reports whether the status indicates a transient condition worth
// retrying (throttling or upstream unavailability).
func (e *ServiceError) retryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
