package provider

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"slotkeeper/backend/internal/store"
)

// Short failure reasons reported to callers in place of raw provider errors.
const (
	ReasonTimeout             = "timeout"
	ReasonCancelled           = "cancelled"
	ReasonInvalidCredential   = "invalid_credential"
	ReasonUnsupportedProvider = "unsupported_provider"
	ReasonUnauthorized        = "unauthorized"
	ReasonNotFound            = "not_found"
	ReasonConflict            = "conflict"
	ReasonRateLimited         = "rate_limited"
	ReasonUnavailable         = "provider_unavailable"
	ReasonRejected            = "rejected"
	ReasonUnknown             = "provider_error"
)

// httpStatusError is implemented by provider errors that carry the remote
// HTTP status.
type httpStatusError interface {
	HTTPStatus() int
}

// Reason classifies a provider error. The raw error can hold response
// bodies and token details, so only the reason leaves the process.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, store.ErrInvalidCredential):
		return ReasonInvalidCredential
	case errors.Is(err, ErrUnknownProvider):
		return ReasonUnsupportedProvider
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return statusReason(gErr.Code)
	}
	var sErr httpStatusError
	if errors.As(err, &sErr) {
		return statusReason(sErr.HTTPStatus())
	}
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return ReasonUnauthorized
	}
	var nErr net.Error
	if errors.As(err, &nErr) && nErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonUnknown
}

func statusReason(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonUnauthorized
	case code == http.StatusNotFound || code == http.StatusGone:
		return ReasonNotFound
	case code == http.StatusConflict:
		return ReasonConflict
	case code == http.StatusTooManyRequests:
		return ReasonRateLimited
	case code >= http.StatusInternalServerError:
		return ReasonUnavailable
	default:
		return ReasonRejected
	}
}
