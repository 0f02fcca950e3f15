package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAPIKeyNotSet is a configuration error: classification needs a key.
	ErrAPIKeyNotSet = errors.New("API key not set")
	// ErrFetchImage covers transport and status failures while reading image bytes.
	ErrFetchImage = errors.New("Failed to fetch image")
	// ErrInvalidBase64 is returned when the encoded payload leaves the base64 alphabet.
	ErrInvalidBase64 = errors.New("Invalid base64 encoding")
)

// APIError is a non-success HTTP status from the classification service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// HostError wraps a failure reported by the host download facility.
type HostError struct {
	Op  string
	Err error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }
