package service

import (
	"context"
	"time"
)

// withStoreTimeout bounds a single store call. A non-positive timeout only
// inherits the parent deadline.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
