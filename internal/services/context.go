package services

import "context"

// Scope identifies the unit of work a context belongs to. Log handlers and
// error reports read it to tag output with the file being processed.
type Scope struct {
	FileID    int64
	Stage     string
	Provider  string
	RequestID string
}

type scopeKey struct{}

// ScopeFrom returns the scope carried by ctx. The zero Scope means none.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

func withScope(ctx context.Context, update func(*Scope)) context.Context {
	scope := ScopeFrom(ctx)
	update(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

// WithFileID scopes ctx to one media file.
func WithFileID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.FileID = id })
}

// WithStage records the pipeline stage (probe, lookup, validate).
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Stage = stage })
}

// WithProvider records the lookup provider currently queried.
func WithProvider(ctx context.Context, provider string) context.Context {
	if provider == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Provider = provider })
}

// WithRequestID records the request id of one ProcessFile call.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.RequestID = id })
}
