package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestOnyxError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *OnyxError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestOnyxError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name     string
		err      *OnyxError
		wantCode int
		wantMsg  string
	}{
		{"image not found", ImageNotFound("alpine"), ExitImageNotFound, "image not found: alpine"},
		{"image exists", ImageExists("alpine"), ExitImageExists, "image alpine already exists"},
		{"storage", StorageError("copy", cause), ExitStorageError, "storage copy failed: boom"},
		{"mount", MountError("bind /dev", cause), ExitMountError, "mount bind /dev failed: boom"},
		{"config", ConfigError("bad profile", cause), ExitConfigError, "bad profile: boom"},
		{"authorization", AuthorizationError("unknown user", cause), ExitAuthorization, "unknown user: boom"},
		{"helper missing", HelperMissing("proot"), ExitHelperMissing, "required helper not found: proot"},
		{"validation", ValidationError("bad name"), ExitGeneralError, "bad name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestMergeError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := MergeError(cause)

	if err.Code != ExitMergeError {
		t.Errorf("Code = %d, want %d", err.Code, ExitMergeError)
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "OnyxError",
			err:      ImageNotFound("test"),
			wantCode: ExitImageNotFound,
		},
		{
			name:     "wrapped OnyxError",
			err:      fmt.Errorf("outer: %w", MountError("proc", nil)),
			wantCode: ExitMountError,
		},
		{
			name:     "regular error",
			err:      fmt.Errorf("some error"),
			wantCode: ExitGeneralError,
		},
		{
			name:     "nil error",
			err:      nil,
			wantCode: ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.wantCode {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ImageExists("x"))
	if !HasCode(err, ExitImageExists) {
		t.Error("HasCode() = false, want true")
	}
	if HasCode(err, ExitImageNotFound) {
		t.Error("HasCode() = true for wrong code")
	}
	if HasCode(fmt.Errorf("plain"), ExitGeneralError) {
		t.Error("HasCode() = true for plain error")
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", ImageNotFound("test"))

	var target *OnyxError
	if !As(wrapped, &target) {
		t.Fatal("As() should return true for wrapped OnyxError")
	}
	if target.Code != ExitImageNotFound {
		t.Errorf("target.Code = %d, want %d", target.Code, ExitImageNotFound)
	}
	if As(fmt.Errorf("regular error"), &target) {
		t.Error("As() should return false for non-OnyxError")
	}
}

func TestErrorChaining(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := Wrap(ExitConfigError, "config error", root)
	outer := fmt.Errorf("operation failed: %w", middle)

	if !errors.Is(outer, root) {
		t.Error("errors.Is should find root cause")
	}
	if !Is(outer, root) {
		t.Error("Is should find root cause")
	}
}

func TestExitStatus(t *testing.T) {
	err := ExitStatus(42)

	if got := GetExitCode(err); got != 42 {
		t.Errorf("GetExitCode() = %d, want 42", got)
	}
	if !IsSilent(err) {
		t.Error("ExitStatus errors should be silent")
	}
	if IsSilent(ImageNotFound("alpine")) {
		t.Error("ImageNotFound should not be silent")
	}
	if IsSilent(fmt.Errorf("plain")) {
		t.Error("plain errors should not be silent")
	}
}
