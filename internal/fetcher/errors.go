package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindUnsupportedMetric ErrorKind = "unsupported_metric"
	KindAuthExpired       ErrorKind = "auth_expired"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTransient         ErrorKind = "transient"
	KindUnknown           ErrorKind = "unknown"
)

var (
	ErrUnsupportedMetric = errors.New("upstream rejected metric as unsupported")
	ErrAuthExpired       = errors.New("upstream token expired or revoked")
	ErrRateLimited       = errors.New("upstream rate limit reached")
	ErrTransient         = errors.New("upstream temporarily unavailable")
	ErrUnknown           = errors.New("upstream error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnsupportedMetric:
		return ErrUnsupportedMetric
	case KindAuthExpired:
		return ErrAuthExpired
	case KindRateLimited:
		return ErrRateLimited
	case KindTransient:
		return ErrTransient
	default:
		return ErrUnknown
	}
}

// GraphError is a classified failure of one Graph API call.
type GraphError struct {
	Kind     ErrorKind
	Status   int
	Code     int
	Subcode  int
	Message  string
	Endpoint string
	Err      error
}

func (e *GraphError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("graph %s: %s (status %d, code %d): %s", e.Endpoint, e.Kind, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("graph %s: %s: %s", e.Endpoint, e.Kind, msg)
}

func (e *GraphError) Unwrap() error { return e.Err }

func (e *GraphError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

type graphErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

var (
	authExpiredPatterns = []string{
		"session has expired",
		"error validating access token",
		"access token has expired",
		"session has been invalidated",
		"has not authorized application",
		"invalid oauth access token",
	}
	rateLimitPatterns = []string{
		"rate limit",
		"too many calls",
		"request limit reached",
		"call volume",
	}
	unsupportedPatterns = []string{
		"not supported",
		"unsupported",
		"does not support",
		"incompatible",
		"invalid metric",
		"metric[",
		"must be one of the following values",
		"not available for",
		"metric_type=total_value",
	}
)

// Classify maps an HTTP status, Graph error code and message onto an ErrorKind.
// The Graph API has no structured "unsupported metric" error so that case is
// recognised by message only.
func Classify(status, code int, message string) ErrorKind {
	msg := strings.ToLower(message)

	if code == 190 || code == 102 || status == http.StatusUnauthorized || containsAny(msg, authExpiredPatterns) {
		return KindAuthExpired
	}
	switch code {
	case 4, 17, 32, 613:
		return KindRateLimited
	}
	if status == http.StatusTooManyRequests || containsAny(msg, rateLimitPatterns) {
		return KindRateLimited
	}
	if (status == http.StatusBadRequest || code == 100) && containsAny(msg, unsupportedPatterns) {
		return KindUnsupportedMetric
	}
	if status >= 500 || code == 1 || code == 2 {
		return KindTransient
	}
	return KindUnknown
}

// KindOf reports the kind of err. Transport failures and timeouts are Transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
