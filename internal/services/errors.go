package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolFailure marks probe subprocess and parse failures.
	ErrToolFailure = errors.New("tool failure")
	// ErrProviderFailure marks network, HTTP and schema failures from a lookup provider.
	// These never penalize a credential.
	ErrProviderFailure = errors.New("provider failure")
	// ErrCredentialFailure marks quota exhaustion or rejected authentication.
	ErrCredentialFailure = errors.New("credential failure")
	// ErrPersistenceFailure marks storage write failures.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProviderFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Category returns a short label for the marker carried by err, used in
// summaries and metric labels.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrToolFailure):
		return "tool"
	case errors.Is(err, ErrCredentialFailure):
		return "credential"
	case errors.Is(err, ErrProviderFailure):
		return "provider"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

// Hint returns an operator next step for err, used as the error_hint log field.
func Hint(err error) string {
	switch Category(err) {
	case "tool":
		return "check that ffprobe is installed and the file is readable"
	case "persistence":
		return "check free space and permissions of the state database"
	case "credential":
		return "run mediaguard keys to inspect quotas and blocks"
	case "provider":
		return "run mediaguard providers test"
	case "configuration":
		return "run mediaguard config validate"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
