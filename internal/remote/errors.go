package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/tier"
)

// StatusError is a non-2xx response from the remote service. Body holds the
// raw response body so callers can show the service's own message.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Unwrap maps the status to the sentinel callers branch on: 5xx means the
// service is unavailable, 404 and 409 map to repository errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= 500:
		return tier.ErrUnavailable
	case e.StatusCode == http.StatusNotFound:
		return repository.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return repository.ErrConflict
	case e.StatusCode == http.StatusBadRequest:
		return repository.ErrInvalidInput
	default:
		return nil
	}
}

// IsUnavailable reports whether err means the remote service could not be
// reached: a transport failure, a timeout or a 5xx response.
func IsUnavailable(err error) bool {
	return errors.Is(err, tier.ErrUnavailable)
}
