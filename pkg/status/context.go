package status

import (
	"context"
	"sync/atomic"
)

type contextKey string

const statusChannelKey contextKey = "status-channel"

type sink struct {
	ch      chan<- Update
	dropped *atomic.Int64
}

// WithChannel returns a new context with the status channel attached.
// The channel should be buffered; Send never blocks on it.
func WithChannel(ctx context.Context, ch chan<- Update) context.Context {
	return withSink(ctx, &sink{ch: ch})
}

func withSink(ctx context.Context, s *sink) context.Context {
	return context.WithValue(ctx, statusChannelKey, s)
}

func getSink(ctx context.Context) *sink {
	if ctx == nil {
		return nil
	}
	s, ok := ctx.Value(statusChannelKey).(*sink)
	if !ok || s.ch == nil {
		return nil
	}
	return s
}

// HasChannel returns true if the context contains a status channel
func HasChannel(ctx context.Context) bool {
	return getSink(ctx) != nil
}
