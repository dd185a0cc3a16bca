package wire

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code  int
		want  Status
		name  string
		desc  string
		known bool
	}{
		{0, StatusOK, "EB_OK", "success", true},
		{-1, StatusFail, "EB_FAIL", "system failure", true},
		{-2, StatusAddress, "EB_ADDRESS", "invalid address", true},
		{-3, StatusWidth, "EB_WIDTH", "impossible bus width", true},
		{-4, StatusOverflow, "EB_OVERFLOW", "cycle length overflow", true},
		{-5, StatusEndian, "EB_ENDIAN", "remote endian required", true},
		{-6, StatusBusy, "EB_BUSY", "resource busy", true},
		{-7, StatusTimeout, "EB_TIMEOUT", "timeout", true},
		{-8, StatusOOM, "EB_OOM", "out of memory", true},
		{-9, StatusABIMismatch, "EB_ABI", "library incompatible with application", true},
		{-10, StatusPartialFailure, "EB_SEGFAULT", "one or more operations failed", true},
		{-11, Status(-11), "UNKNOWN(-11)", "unknown status", false},
		{42, Status(42), "UNKNOWN(42)", "unknown status", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			s := StatusFromCode(tt.code)
			if s != tt.want {
				t.Errorf("StatusFromCode(%d) = %d, want %d", tt.code, s, tt.want)
			}
			if s.String() != tt.name {
				t.Errorf("String() = %q, want %q", s.String(), tt.name)
			}
			if s.Description() != tt.desc {
				t.Errorf("Description() = %q, want %q", s.Description(), tt.desc)
			}
			if s.Known() != tt.known {
				t.Errorf("Known() = %v, want %v", s.Known(), tt.known)
			}
			if s.Code() != tt.code {
				t.Errorf("Code() = %d, want %d", s.Code(), tt.code)
			}
		})
	}
}

func TestStatusIsError(t *testing.T) {
	if StatusOK.IsError() || !StatusOK.IsSuccess() {
		t.Error("StatusOK should be success")
	}
	if !StatusTimeout.IsError() || StatusTimeout.IsSuccess() {
		t.Error("StatusTimeout should be an error")
	}
}

func TestStatusWrapping(t *testing.T) {
	err := fmt.Errorf("read 0x1000: %w", StatusTimeout)
	if !errors.Is(err, StatusTimeout) {
		t.Error("errors.Is should match wrapped status")
	}
	if errors.Is(err, StatusFail) {
		t.Error("errors.Is should not match a different status")
	}

	var s Status
	if !errors.As(err, &s) || s != StatusTimeout {
		t.Errorf("errors.As = %v, want %v", s, StatusTimeout)
	}
	if got := StatusAddress.Error(); got != "-2=>EB_ADDRESS (invalid address)" {
		t.Errorf("Error() = %q", got)
	}
}
