package providers

import (
	"context"
	"sync/atomic"
)

// RequestCounter tallies the HTTP requests issued under one context.
type RequestCounter struct {
	n atomic.Int64
}

// Count returns the number of requests sent so far.
func (c *RequestCounter) Count() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

type requestCounterKey struct{}

// WithRequestCounter returns a context whose provider requests are counted.
// Quota-bearing keys are charged per request, not per lookup.
func WithRequestCounter(ctx context.Context) (context.Context, *RequestCounter) {
	counter := &RequestCounter{}
	return context.WithValue(ctx, requestCounterKey{}, counter), counter
}

func countRequest(ctx context.Context) {
	if counter, ok := ctx.Value(requestCounterKey{}).(*RequestCounter); ok {
		counter.n.Add(1)
	}
}
