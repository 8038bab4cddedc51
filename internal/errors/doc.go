// Package errors provides typed errors with exit codes for onyx.
//
// # Error Types
//
// OnyxError is the base error type that wraps an error with an exit code:
//
//	type OnyxError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess        = 0  // Success
//	ExitGeneralError   = 1  // General/unknown errors, bad input
//	ExitImageNotFound  = 2  // Image does not exist
//	ExitImageExists    = 3  // Image name already taken
//	ExitStorageError   = 4  // Image store IO failure
//	ExitMountError     = 5  // Mount, bind, remount or unmount failure
//	ExitConfigError    = 6  // Profile or store configuration error
//	ExitAuthorization  = 7  // Identity could not be resolved
//	ExitMergeError     = 8  // Delta commit failed part way
//	ExitHelperMissing  = 9  // proot or fuse-overlayfs not installed
//
// Degraded isolation and resource-limit failures are deliberately not
// errors; see the runtime and profile packages.
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
