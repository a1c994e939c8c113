package remap

import "fmt"

// StatusError is returned when the API answers with a non-2xx status code.
// Callers treat it as non-retryable: stale data masks it if available.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remap API status %d: %s", e.Code, e.Body)
}

// DecodeError is returned when the response body is not valid JSON under
// either decode strategy (direct or permissive Latin-1 re-decode).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode remap response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
