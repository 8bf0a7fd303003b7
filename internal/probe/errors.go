package probe

import (
	"fmt"

	"mediaguard/internal/services"
)

// FailureKind distinguishes the ways a probe can fail.
type FailureKind string

const (
	ToolNotFound    FailureKind = "tool_not_found"
	NonZeroExit     FailureKind = "non_zero_exit"
	MalformedOutput FailureKind = "malformed_output"
)

// Failure is returned by Probe for every tool-side failure.
type Failure struct {
	Kind FailureKind
	Path string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", f.Path, f.Kind, f.Err)
}

// Unwrap exposes both the tool failure marker and the underlying cause.
func (f *Failure) Unwrap() []error {
	return []error{services.ErrToolFailure, f.Err}
}
