package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int      `json:"-"`
	Code      string   `json:"error"`
	Message   string   `json:"message"`
	Resources []string `json:"resources,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// IsSafetyConcern reports whether err is the server withholding a reply and
// returns the support resources it sent along.
func IsSafetyConcern(err error) ([]string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "safety_concern" {
		return apiErr.Resources, true
	}
	return nil, false
}
