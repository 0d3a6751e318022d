package core

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NewError(KindTimeout, "command takeoff", os.ErrDeadlineExceeded)
	wrapped := fmt.Errorf("connect: %w", err)

	if !errors.Is(wrapped, ErrTimeout) {
		t.Fatalf("errors.Is(%v, ErrTimeout) = false", wrapped)
	}
	if errors.Is(wrapped, ErrTransport) {
		t.Fatalf("timeout must not match ErrTransport")
	}
	if !errors.Is(wrapped, os.ErrDeadlineExceeded) {
		t.Fatalf("cause should stay reachable through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), ""},
		{"direct", Errorf(KindValidation, "move", "distance %d out of range", 10), KindValidation},
		{"wrapped", fmt.Errorf("x: %w", ErrStreamNotActive), KindStreamNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(KindValidation, "rotate", "angle %d out of range [1, 360]", 0)
	want := "rotate: ValidationError: angle 0 out of range [1, 360]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
