package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
)

func TestUnaryTimeoutInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	tests := []struct {
		name     string
		ctx      func() (context.Context, context.CancelFunc)
		timeout  time.Duration
		maxUntil time.Duration
	}{
		{"adds deadline", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }, time.Second, time.Second},
		{"default timeout", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }, 0, DefaultRPCTimeout},
		{"keeps caller deadline", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 50*time.Millisecond)
		}, time.Hour, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			var until time.Duration
			_, err := UnaryTimeoutInterceptor(tt.timeout)(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
				d, ok := ctx.Deadline()
				if !ok {
					t.Fatal("handler context has no deadline")
				}
				until = time.Until(d)
				return nil, nil
			})
			if err != nil {
				t.Fatalf("interceptor error = %v", err)
			}
			if until <= 0 || until > tt.maxUntil {
				t.Errorf("deadline in %s, want within %s", until, tt.maxUntil)
			}
		})
	}
}
