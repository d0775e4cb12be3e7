package market

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by providers and surfaced by the HTTP layer.
var (
	// ErrNotFound means the upstream source has no data for the ticker.
	ErrNotFound = errors.New("ticker not found")
	// ErrInvalidTicker means the symbol failed validation before any
	// upstream call was made.
	ErrInvalidTicker = errors.New("invalid ticker symbol")
	// ErrInvalidPeriod means the requested history range is not one of
	// ValidPeriods.
	ErrInvalidPeriod = errors.New("invalid period")
)

// APIError represents a failed call to an upstream market-data API.
// StatusCode is zero when the request never produced a response
// (network failure, timeout).
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream error: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *APIError) Unwrap() error {
	return e.Cause
}

// RateLimited reports whether the upstream rejected the call with HTTP 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NewAPIError creates an APIError for a non-2xx upstream response.
func NewAPIError(provider string, statusCode int, message string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewNetworkError creates an APIError for a request that never reached
// the upstream (DNS, connection, timeout).
func NewNetworkError(provider string, cause error) *APIError {
	return &APIError{
		Provider: provider,
		Message:  "request failed",
		Cause:    cause,
	}
}
