package model

import (
	"fmt"
	"time"
)

// FailureKind classifies where in the pipeline a record failed.
type FailureKind string

const (
	FailureIngestion   FailureKind = "ingestion"
	FailureExtraction  FailureKind = "extraction"
	FailureValidation  FailureKind = "validation"
	FailurePublication FailureKind = "publication"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// CorruptionError reports an unreadable or unparseable store snapshot.
// It is the only error class the orchestrator treats as fatal to a cycle.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("store snapshot %s corrupt: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
