package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mediaguard/internal/services"
)

var (
	// ErrNoMatch means the provider answered but knows nothing about the file.
	ErrNoMatch = fmt.Errorf("no match: %w", services.ErrNotFound)
	// ErrAuthRejected means the provider refused the credential.
	ErrAuthRejected = fmt.Errorf("%w: authentication rejected", services.ErrCredentialFailure)
	// ErrQuotaExceeded means the provider reported the credential's limit as reached.
	ErrQuotaExceeded = fmt.Errorf("%w: request limit reached", services.ErrCredentialFailure)
)

// HTTPError is a non-success HTTP response from a provider.
type HTTPError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Provider, e.Operation, e.StatusCode)
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		msg += ": " + body
	}
	return msg
}

// Unwrap classifies the status: 401 and 403 cost the key, 404 is no match,
// anything else is a provider failure.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthRejected
	case http.StatusNotFound:
		return ErrNoMatch
	default:
		return services.ErrProviderFailure
	}
}

// IsCredentialFailure reports whether err should block the key that was used.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, services.ErrCredentialFailure)
}

// IsQuota reports whether err is a limit-reached signal rather than a rejection.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
