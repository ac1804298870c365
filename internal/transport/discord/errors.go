package discord

import "fmt"

// StatusError is returned for non-2xx webhook responses. Body holds the
// (truncated) response text, which for Discord is a JSON error object.
type StatusError struct {
	Method string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("discord: %s returned status %d", e.Method, e.Code)
	}
	return fmt.Sprintf("discord: %s returned status %d: %s", e.Method, e.Code, e.Body)
}
