package entity

import (
	"errors"
	"fmt"
)

// SourceAuthError means the upstream rejected (or was never given) the
// credential. It is not retried.
type SourceAuthError struct {
	Entity     EntityType
	StatusCode int
	Message    string
}

func (e *SourceAuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("source auth error (%s): %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("source auth error (%s): status %d: %s", e.Entity, e.StatusCode, e.Message)
}

func IsSourceAuthError(err error) bool {
	var target *SourceAuthError
	return errors.As(err, &target)
}

// SourceUnavailable means the upstream could not serve a page after the retry
// policy was exhausted.
type SourceUnavailable struct {
	Entity     EntityType
	Attempts   int
	StatusCode int
	Cause      error
}

func (e *SourceUnavailable) Error() string {
	msg := fmt.Sprintf("source unavailable (%s) after %d attempt(s)", e.Entity, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SourceUnavailable) Unwrap() error { return e.Cause }

func IsSourceUnavailable(err error) bool {
	var target *SourceUnavailable
	return errors.As(err, &target)
}

// LoadError wraps a storage failure while writing one entity batch.
type LoadError struct {
	Entity EntityType
	Cause  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Entity, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

func IsLoadError(err error) bool {
	var target *LoadError
	return errors.As(err, &target)
}
