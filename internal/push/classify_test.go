package push

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code      string
		retryable bool
		invalid   bool
	}{
		{CodeUnregistered, false, true},
		{CodeInvalidToken, false, true},
		{CodeInvalidArgument, false, false},
		{CodeSenderIDMismatch, false, false},
		{CodeQuotaExceeded, true, false},
		{CodeUnavailable, true, false},
		{CodeInternal, true, false},
		{CodeThirdPartyAuth, false, false},
		{CodeTimeout, true, false},
		{CodeUnknown, false, false},
		{"something-new", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Classify(tt.code)
			if got.Retryable != tt.retryable || got.InvalidToken != tt.invalid {
				t.Errorf("Classify(%q) = %+v, want retryable=%v invalid=%v", tt.code, got, tt.retryable, tt.invalid)
			}
		})
	}
}

func TestNoCodeIsBothRetryableAndInvalid(t *testing.T) {
	for code, cls := range errorClassification {
		if cls.Retryable && cls.InvalidToken {
			t.Errorf("code %q is both retryable and token-invalidating", code)
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"provider error", &ProviderError{Code: CodeQuotaExceeded, Err: errors.New("slow down")}, CodeQuotaExceeded},
		{"wrapped provider error", fmt.Errorf("chunk: %w", &ProviderError{Code: CodeInternal, Err: errors.New("x")}), CodeInternal},
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"canceled", context.Canceled, CodeTimeout},
		{"other", errors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
