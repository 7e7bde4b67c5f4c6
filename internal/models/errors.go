package models

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when no manifest record exists for a hash.
	ErrNotFound = errors.New("record not found")

	// ErrArchiverDisabled is returned when archiving is turned off by
	// configuration.
	ErrArchiverDisabled = errors.New("archiver is disabled")

	// ErrNoCredentials is returned when an upload is required but no
	// provider credential is configured.
	ErrNoCredentials = errors.New("no upload credentials configured")

	// ErrUncompressible is returned when a non-image file exceeds the size
	// limit; only images support lossy re-encoding.
	ErrUncompressible = errors.New("file exceeds size limit and cannot be compressed")

	// ErrAttachmentNotFound is returned when a requested attachment ID is
	// absent from the message's current attachments.
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// ConfigError reports a missing or invalid piece of configuration, such as an
// absent route-table entry. Not retryable.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Detail
}

// NewConfigError creates a ConfigError with a formatted detail message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// PolicyDeniedError carries the accumulated rejection reasons from a policy
// check. Not retryable without changing the input.
type PolicyDeniedError struct {
	Reasons []string
}

func (e *PolicyDeniedError) Error() string {
	return "policy denied: " + strings.Join(e.Reasons, "; ")
}

// UploadError wraps any transport or provider-side failure during upload.
// Potentially retryable by the caller; this layer performs no retries.
type UploadError struct {
	Mode string // "bot" or "webhook"
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (%s): %v", e.Mode, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
