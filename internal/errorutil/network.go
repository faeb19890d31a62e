package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	neturl "net/url"
	"strings"
)

// NetworkErrorKind classifies a failed request
type NetworkErrorKind int

const (
	// KindNetwork covers transport failures and failed fan-outs
	KindNetwork NetworkErrorKind = iota
	// KindBadURL means the request URL could not be built
	KindBadURL
	// KindServer means the server answered outside the 2xx range
	KindServer
	// KindTimeout means a bounded wait expired
	KindTimeout
)

func (k NetworkErrorKind) String() string {
	switch k {
	case KindBadURL:
		return "bad_url"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	default:
		return "network"
	}
}

// NetworkError represents a network-related error with additional context
type NetworkError struct {
	Kind       NetworkErrorKind
	Operation  string // The operation that failed (e.g., "fetch provinces")
	URL        string // The URL that was being accessed
	StatusCode int    // HTTP status code (KindServer only)
	Underlying error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s failed: %s error: %v", e.Operation, e.Kind, e.Underlying)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed for %s: HTTP %d", e.Operation, e.URL, e.StatusCode)
	}
	if e.Underlying == nil {
		return fmt.Sprintf("%s failed for %s: %s error", e.Operation, e.URL, e.Kind)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.URL, e.Underlying)
}

func (e *NetworkError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &NetworkError{Kind: KindTimeout})
func (e *NetworkError) Is(target error) bool {
	t, ok := target.(*NetworkError)
	if !ok {
		return false
	}
	return t.Operation == "" && t.URL == "" && t.Underlying == nil && t.Kind == e.Kind
}

// NewNetworkError classifies a transport-level error returned by an HTTP client
func NewNetworkError(operation, url string, err error) *NetworkError {
	kind := KindNetwork
	switch {
	case isTimeoutError(err):
		kind = KindTimeout
	case isBadURLError(err):
		kind = KindBadURL
	}

	return &NetworkError{
		Kind:       kind,
		Operation:  operation,
		URL:        url,
		Underlying: err,
	}
}

// NewStatusError reports a response whose status is outside 200-299
func NewStatusError(operation, url string, statusCode int) *NetworkError {
	return &NetworkError{
		Kind:       KindServer,
		Operation:  operation,
		URL:        url,
		StatusCode: statusCode,
	}
}

// KindOf returns the kind of the first NetworkError in err's chain
func KindOf(err error) (NetworkErrorKind, bool) {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Kind, true
	}
	return KindNetwork, false
}

// LogNetworkError logs a network error with its classification and returns it
func LogNetworkError(logger *slog.Logger, netErr *NetworkError) *NetworkError {
	if logger == nil || netErr == nil {
		return netErr
	}

	args := []any{
		slog.String("operation", netErr.Operation),
		slog.String("url", netErr.URL),
		slog.String("kind", netErr.Kind.String()),
	}
	if netErr.StatusCode > 0 {
		args = append(args, slog.Int("status_code", netErr.StatusCode))
	}
	if netErr.Underlying != nil {
		args = append(args, slog.String("error", netErr.Underlying.Error()))
	}

	logger.Warn("Network operation failed", args...)
	return netErr
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isBadURLError(err error) bool {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		if urlErr.Op == "parse" {
			return true
		}
		return urlErr.Err != nil && strings.Contains(urlErr.Err.Error(), "protocol scheme")
	}
	return false
}
