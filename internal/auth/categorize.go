package auth

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory is a stable label for authentication outcomes in metrics.
type ErrorCategory string

// Error category constants used as the authVerificationsTotal result label.
const (
	ErrorCategoryMissingToken ErrorCategory = "missing_token"
	ErrorCategoryInvalidToken ErrorCategory = "invalid_token"
	ErrorCategoryTimeout      ErrorCategory = "timeout"
	ErrorCategoryNetwork      ErrorCategory = "network"
	ErrorCategoryRateLimited  ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx  ErrorCategory = "upstream_5xx"
	ErrorCategoryCircuitOpen  ErrorCategory = "circuit_open"
	ErrorCategoryParsing      ErrorCategory = "parsing"
	ErrorCategoryUnknown      ErrorCategory = "unknown"
)

// errMissingToken marks a request without a usable Authorization header.
var errMissingToken = errors.New("missing bearer token")

// CategorizeError maps a verification error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errMissingToken):
		return ErrorCategoryMissingToken
	case errors.Is(err, ErrInvalidToken):
		return ErrorCategoryInvalidToken
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream5xx
	case errors.Is(err, ErrMalformedReply):
		return ErrorCategoryParsing
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
