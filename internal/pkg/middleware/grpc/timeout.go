package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const DefaultRPCTimeout = 10 * time.Second

// UnaryTimeoutInterceptor bounds unary calls that arrive without a deadline.
// A non-positive timeout uses DefaultRPCTimeout.
func UnaryTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return handler(ctx, req)
	}
}
