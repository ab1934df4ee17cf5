package backup

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
	"time"
)

// ErrJobNotPending is returned by an execution attempt for a job that another
// worker already picked up or that has finished.
var ErrJobNotPending = errors.New("backup job is not pending")

type (
	InvalidScopeError struct {
		Type string
	}

	FieldError struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	}

	ValidationError struct {
		Fields []FieldError
	}

	EnumerationError struct {
		Source string
		Err    error
	}

	FetchError struct {
		Name string
		Key  string
		Err  error
	}

	UploadError struct {
		Key string
		Err error
	}

	TimeoutError struct {
		After time.Duration
	}

	InsufficientSpaceError struct {
		Dir       string
		Free      uint64
		Threshold uint64
	}
)

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid backup type %q: must be one of full, documents", e.Type)
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid backup settings: " + strings.Join(parts, "; ")
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("failed to list %s: %v", e.Source, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s (%s): %v", e.Name, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload archive %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backup timed out after %s", e.After)
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient free space in %s: %d bytes free, %d required", e.Dir, e.Free, e.Threshold)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	var scopeErr *InvalidScopeError
	var validationErr *ValidationError
	return errors.As(err, &scopeErr) || errors.As(err, &validationErr)
}
