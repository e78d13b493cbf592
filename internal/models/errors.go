package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across packages.
var (
	// ErrJobNotFound is returned by registry lookups for unknown ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when a mutation targets a job that has
	// already reached a terminal status.
	ErrJobTerminal = errors.New("job already terminal")
	// ErrInvalidTransition is returned when a mutation would move the
	// status backwards through the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ErrorCode is the machine-checkable classification of a job failure.
type ErrorCode string

const (
	// ErrCodeNoCaptions: the subject has no caption or subtitle tracks
	// at all, and every fallback stage failed.
	ErrCodeNoCaptions ErrorCode = "NO_CAPTIONS_AVAILABLE"
	// ErrCodeLanguageUnavailable: captions exist, but not in the
	// requested language or any usable variant of it.
	ErrCodeLanguageUnavailable ErrorCode = "LANGUAGE_NOT_AVAILABLE"
	// ErrCodeUpstream: an external collaborator failed after retries.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrCodeProcessFailed: the external tool exited non-zero.
	ErrCodeProcessFailed ErrorCode = "PROCESS_FAILED"
	// ErrCodeTimeout: the queue-level task timeout expired.
	ErrCodeTimeout ErrorCode = "TASK_TIMEOUT"
	// ErrCodeCanceled: the job was canceled by request.
	ErrCodeCanceled ErrorCode = "JOB_CANCELED"
)

// JobError is the structured error surfaced as a job failure result.
// It always carries a human-readable message alongside the code.
type JobError struct {
	Code               ErrorCode `json:"code"`
	Message            string    `json:"message"`
	AvailableLanguages []string  `json:"available_languages,omitempty"`
}

func (e *JobError) Error() string {
	if len(e.AvailableLanguages) > 0 {
		return fmt.Sprintf("%s: %s (available: %s)", e.Code, e.Message, strings.Join(e.AvailableLanguages, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewJobError builds a JobError with a formatted message.
func NewJobError(code ErrorCode, format string, args ...any) *JobError {
	return &JobError{Code: code, Message: fmt.Sprintf(format, args...)}
}
