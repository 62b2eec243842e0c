package errors

import "fmt"

// APIError is the standardized JSON error body returned by the HTTP surface.
type APIError struct {
	Code    string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

// Error codes returned by the API.
const (
	VerificationFailed = "verification_failed"
	InvalidPayload     = "invalid_payload"
	Unauthorized       = "unauthorized"
	NotFound           = "not_found"
	ServerError        = "internal_error"
)

// Common error constructors
func NewVerificationFailed(details string) *APIError {
	return &APIError{Code: VerificationFailed, Details: details}
}

func NewInvalidPayload(details string) *APIError {
	return &APIError{Code: InvalidPayload, Details: details}
}

func NewUnauthorized(details string) *APIError {
	return &APIError{Code: Unauthorized, Details: details}
}

func NewNotFound(details string) *APIError {
	return &APIError{Code: NotFound, Details: details}
}

func NewServerError(details string) *APIError {
	return &APIError{Code: ServerError, Details: details}
}
