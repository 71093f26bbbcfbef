package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a provider rejects the credentials (HTTP 401/403).
	ErrUnauthorized = errors.New("provider rejected credentials")
	// ErrNoData is returned when a provider answers with an empty result.
	ErrNoData = errors.New("provider returned no data")
)

// APIError is a non-success provider response. Message holds the provider's own error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}
