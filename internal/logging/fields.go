package logging

import (
	"context"
	"log/slog"

	"mediaguard/internal/services"
)

// Standard structured keys. The console handler lifts component, file id,
// stage and provider into the line header.
const (
	FieldComponent = "component"
	FieldFileID    = "file_id"
	FieldStage     = "stage"
	FieldProvider  = "provider"
	FieldRequestID = "request_id"
	// FieldEventType classifies a line for filtering (e.g. "keys_exhausted").
	FieldEventType = "event_type"
	// FieldErrorHint is the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is what the warning means for the library.
	FieldImpact = "impact"
)

// ContextFields converts the work scope carried by ctx into attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeFrom(ctx)
	var fields []slog.Attr
	if scope.FileID > 0 {
		fields = append(fields, slog.Int64(FieldFileID, scope.FileID))
	}
	if scope.Stage != "" {
		fields = append(fields, slog.String(FieldStage, scope.Stage))
	}
	if scope.Provider != "" {
		fields = append(fields, slog.String(FieldProvider, scope.Provider))
	}
	if scope.RequestID != "" {
		fields = append(fields, slog.String(FieldRequestID, scope.RequestID))
	}
	return fields
}

// WithContext returns logger tagged with the scope of ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
