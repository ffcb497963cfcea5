package paycrest

import "fmt"

// ErrorResponse represents a processor API error response.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("paycrest API error [%d]: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true for a 404 response.
func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRateLimited returns true for a 429 response.
func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true for 5xx responses.
func (e *ErrorResponse) IsServerError() bool {
	return e.StatusCode >= 500
}
