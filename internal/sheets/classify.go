package sheets

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/api/googleapi"
)

// User-facing messages produced by ClassifyError.
const (
	MessageReconnect    = "Reconnect to Google to keep syncing."
	MessageNotFound     = "Sheet not found. Reconnect to create a new one."
	MessageServiceIssue = "Sync paused due to Google service issues. We will retry automatically."
	MessageNetwork      = "Network error while syncing."
	messageAPIError     = "Google API error"
	messageSyncFailed   = "Sync failed."
)

// Verdict is the classified outcome of a failed remote call.
type Verdict struct {
	Message         string
	ShouldClearAuth bool
	Retryable       bool
	Status          int // 0 when the failure carried no HTTP status
}

// ClassifyError maps a remote failure to a Verdict. Every retry and
// credential decision in the program is derived from this function.
func ClassifyError(err error) Verdict {
	if err == nil {
		return Verdict{}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		status := apiErr.Code
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return Verdict{Message: MessageReconnect, ShouldClearAuth: true, Status: status}
		case status == http.StatusNotFound:
			return Verdict{Message: MessageNotFound, Status: status}
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return Verdict{Message: MessageServiceIssue, Retryable: true, Status: status}
		default:
			message := apiErr.Message
			if message == "" {
				message = messageAPIError
			}
			return Verdict{Message: message, Status: status}
		}
	}

	if isNetworkError(err) {
		return Verdict{Message: MessageNetwork, Retryable: true}
	}

	message := err.Error()
	if message == "" {
		message = messageSyncFailed
	}
	return Verdict{Message: message}
}

// IsAuthError reports whether err means the stored credentials are no longer valid.
func IsAuthError(err error) bool {
	return ClassifyError(err).ShouldClearAuth
}

func isNetworkError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
