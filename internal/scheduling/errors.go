package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound is returned when a professional, specialty or date is unknown to the directory.
	ErrNotFound = errors.New("scheduling: not found")
	// ErrSlotUnavailable is returned when the requested slot was taken before submission.
	ErrSlotUnavailable = errors.New("scheduling: slot no longer available")
)

// APIError is a non-2xx response from the directory.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scheduling: status %d: %s", e.StatusCode, e.Body)
}

// Is maps HTTP statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrSlotUnavailable:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// IsConnectivity reports whether err is a transport-level failure (timeouts,
// refused connections, 5xx) rather than a rejection of the request itself.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrSlotUnavailable) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
