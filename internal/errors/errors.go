// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is returned when the operator declines to retry a failed step.
var ErrCancelled = errors.New("cancelled by user")

// AuthRequestError is returned when the device code could not be obtained
// or the token endpoint could not be reached.
type AuthRequestError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("device authorization request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("device authorization request failed: %v", e.Err)
}

func (e *AuthRequestError) Unwrap() error { return e.Err }

// AuthDeniedError is returned when the authorization server rejects the device grant.
type AuthDeniedError struct {
	Code        string
	Description string
}

func (e *AuthDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// AuthTimeoutError is returned when polling for a token exceeds its attempt or time budget.
type AuthTimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *AuthTimeoutError) Error() string {
	return fmt.Sprintf("authorization not granted after %d attempts (%s)", e.Attempts, e.Elapsed.Round(time.Second))
}

// TransportError wraps a connection-level failure of an HTTP request.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is returned for a non-successful HTTP status.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is a transient server failure.
func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// DecodeError is returned when a payload is not the expected JSON.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid JSON from %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaError is returned when a repository object lacks a required field.
type SchemaError struct {
	Index int
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("repository at index %d is missing required field %q", e.Index, e.Field)
}

// ConnectionError is returned when the relational store cannot be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError is returned when replacing a table fails.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing table %q failed: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// QueryError is returned when the report query fails.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("report query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CacheError wraps any cache failure that is not a miss or a decode failure.
type CacheError struct {
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache unavailable: %v", e.Err)
	}
	return fmt.Sprintf("cache operation on %q failed: %v", e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// CacheMissError is returned when a key is absent from the cache.
type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("cache key %q not found", e.Key)
}

// DeserializeError is returned when a cached blob cannot be decoded.
type DeserializeError struct {
	Key string
	Err error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("cache entry %q is corrupt: %v", e.Key, e.Err)
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// IsCacheError reports whether err belongs to the cache family. Those errors
// never abort a pipeline run.
func IsCacheError(err error) bool {
	var (
		ce *CacheError
		me *CacheMissError
		de *DeserializeError
	)
	return errors.As(err, &ce) || errors.As(err, &me) || errors.As(err, &de)
}
