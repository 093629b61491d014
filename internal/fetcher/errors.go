package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrErrorPage is returned when a 200 response body looks like a soft
	// error page (too short or carrying a removal phrase).
	ErrErrorPage = errors.New("error page detected")

	// ErrNetworkTimeout is returned when a request exhausted its deadline.
	ErrNetworkTimeout = errors.New("network timeout")
)

// RemoteStatusError reports a terminal, non-retryable HTTP status.
type RemoteStatusError struct {
	Status int
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("remote returned status %d", e.Status)
}
