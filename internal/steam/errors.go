package steam

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("steam: api key is required")
	ErrMissingField  = errors.New("steam: missing required field")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("steam: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
