package log

import (
	"context"
	"testing"
)

func TestContextLogger(t *testing.T) {
	if got := FromContext(context.Background()); got != Std() {
		t.Errorf("FromContext without a logger should return the global logger")
	}

	l := NewNopLogger().WithName("request")
	ctx := NewContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Errorf("FromContext = %v, want the stored logger", got)
	}
}
