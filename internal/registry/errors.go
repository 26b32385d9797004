package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrReleaseNotFound is returned when the requested release tag does not exist.
	ErrReleaseNotFound = errors.New("release not found; list available tags with the tags command")
	// ErrNetwork is returned when the store cannot be reached.
	ErrNetwork = errors.New("release store unreachable")
	// ErrUnauthorized is returned when the token is missing or cannot publish.
	ErrUnauthorized = errors.New("release store rejected the credentials")
	// ErrAssetExists is returned when uploading over an existing asset without clobber.
	ErrAssetExists = errors.New("asset already exists in release")
	// ErrInvalidRepository is returned for repository names not in owner/repo form.
	ErrInvalidRepository = errors.New("repository must be in owner/repo form")
)

// APIError is a non-2xx response from the release store.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Message is the error description returned by the store.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("release store: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var wire struct {
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
	} else {
		apiErr.Message = string(body)
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	}

	return apiErr
}
