package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/edgard/holidaybot/internal/errs"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same code", errs.NewNotFoundError("query missing", nil), errs.ErrNotFound, true},
		{"wrapped", fmt.Errorf("lookup: %w", errs.NewNotReadyError("pending", cause)), errs.ErrNotReady, true},
		{"different code", errs.NewProviderError("timeout", cause), errs.ErrEmptyCache, false},
		{"plain error", cause, errs.ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("send: %w", errs.NewDeliveryError("telegram send failed", cause))

	if got := errs.Code(err); got != errs.CodeDelivery {
		t.Errorf("Code() = %q, want %q", got, errs.CodeDelivery)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if got := errs.Code(cause); got != errs.CodeUnknown {
		t.Errorf("Code(plain) = %q, want %q", got, errs.CodeUnknown)
	}
	if got := err.Error(); got != "send: telegram send failed: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler: %w", errs.NewValidationError("Dates before 2010 are not supported", errors.New("internal detail")))
	if got := errs.Message(err, "fallback"); got != "Dates before 2010 are not supported" {
		t.Errorf("Message() = %q", got)
	}
	if got := errs.Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("Message() = %q, want fallback", got)
	}
}
