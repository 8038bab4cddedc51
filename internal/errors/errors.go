package errors

import (
	"errors"
	"fmt"
)

// Exit codes for onyx
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitImageNotFound = 2
	ExitImageExists   = 3
	ExitStorageError  = 4
	ExitMountError    = 5
	ExitConfigError   = 6
	ExitAuthorization = 7
	ExitMergeError    = 8
	ExitHelperMissing = 9
)

// OnyxError is the base error type for onyx
type OnyxError struct {
	Code    int
	Message string
	Cause   error

	// Silent errors only carry an exit code and are not printed.
	Silent bool
}

func (e *OnyxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *OnyxError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *OnyxError) ExitCode() int {
	return e.Code
}

// New creates a new OnyxError
func New(code int, message string) *OnyxError {
	return &OnyxError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an OnyxError
func Wrap(code int, message string, cause error) *OnyxError {
	return &OnyxError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ImageNotFound returns an error for a missing sandbox image
func ImageNotFound(name string) *OnyxError {
	return New(ExitImageNotFound, fmt.Sprintf("image not found: %s", name))
}

// ImageExists returns an error when an image name is already taken
func ImageExists(name string) *OnyxError {
	return New(ExitImageExists, fmt.Sprintf("image %s already exists", name))
}

// StorageError returns an error for image store IO failures
func StorageError(op string, cause error) *OnyxError {
	return Wrap(ExitStorageError, fmt.Sprintf("storage %s failed", op), cause)
}

// MountError returns an error for mount, bind, remount or unmount failures
func MountError(op string, cause error) *OnyxError {
	return Wrap(ExitMountError, fmt.Sprintf("mount %s failed", op), cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *OnyxError {
	return Wrap(ExitConfigError, message, cause)
}

// AuthorizationError returns an error for identity resolution or permission failures
func AuthorizationError(message string, cause error) *OnyxError {
	return Wrap(ExitAuthorization, message, cause)
}

// MergeError returns an error for a failed delta commit
func MergeError(cause error) *OnyxError {
	return Wrap(ExitMergeError, "delta merge failed (base image may be partially updated, delta kept for retry)", cause)
}

// HelperMissing returns an error when a required external helper binary is absent
func HelperMissing(name string) *OnyxError {
	return New(ExitHelperMissing, fmt.Sprintf("required helper not found: %s", name))
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *OnyxError {
	return New(ExitGeneralError, message)
}

// ExitStatus carries a sandboxed process's non-zero exit status to main.
func ExitStatus(code int) *OnyxError {
	return &OnyxError{
		Code:    code,
		Message: fmt.Sprintf("exit status %d", code),
		Silent:  true,
	}
}

// IsSilent reports whether err should be reported only through the exit code.
func IsSilent(err error) bool {
	var onyxErr *OnyxError
	return errors.As(err, &onyxErr) && onyxErr.Silent
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var onyxErr *OnyxError
	if errors.As(err, &onyxErr) {
		return onyxErr.ExitCode()
	}
	return ExitGeneralError
}

// HasCode reports whether err carries an OnyxError with the given exit code
func HasCode(err error, code int) bool {
	var onyxErr *OnyxError
	return errors.As(err, &onyxErr) && onyxErr.Code == code
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
