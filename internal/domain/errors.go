package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when the input directory holds no CSV files
	ErrNoInput = errors.New("no csv file found in the input directory")

	// ErrAuthFailure is returned when the token endpoint does not issue a token
	ErrAuthFailure = errors.New("failed to obtain access token")

	// ErrTransport is returned when a request fails below the HTTP layer
	ErrTransport = errors.New("catalog API transport failure")

	// ErrSoftMiss is returned when a search succeeds but carries no item summaries
	ErrSoftMiss = errors.New("search returned no item summaries")

	// ErrHTTPStatus is returned when the catalog API answers with a non-200 status
	ErrHTTPStatus = errors.New("catalog API returned unexpected status")

	// ErrDecode is returned when a 200 response body is not valid JSON
	ErrDecode = errors.New("failed to decode response")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)

// StatusError carries the status and body of a non-200 catalog API response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d, body: %s", ErrHTTPStatus, e.Code, e.Body)
}

// Unwrap lets errors.Is match ErrHTTPStatus
func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}
