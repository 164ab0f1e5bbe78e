package worker

import (
	"errors"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/stats"
)

// ErrorCode is the name reported to callers in the "error" field.
type ErrorCode string

const (
	CodeMissingCredential         ErrorCode = "missing_credential"
	CodeAccountNotFound           ErrorCode = "account_not_found"
	CodeUpstreamAuthExpired       ErrorCode = "upstream_auth_expired"
	CodeUpstreamRateLimited       ErrorCode = "upstream_rate_limited"
	CodeUpstreamUnsupportedMetric ErrorCode = "upstream_unsupported_metric"
	CodeUpstreamTransient         ErrorCode = "upstream_transient"
	CodeUpstreamError             ErrorCode = "upstream_error"
	CodePersistence               ErrorCode = "persistence_error"
	CodeSchemaMissing             ErrorCode = "schema_missing"
	CodeFollowersQueryFailed      ErrorCode = "followers_query_failed"
	CodeTrendQueryFailed          ErrorCode = "trend_query_failed"
	CodeInvalidRequest            ErrorCode = "invalid_request"
	CodeServerError               ErrorCode = "server_error"
)

var (
	ErrPersistence    = errors.New("persistence error")
	ErrInvalidRequest = errors.New("invalid request")
)

// CodeOf maps an error from any job or reader onto its ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	// Trend reads name the failed store rather than its cause.
	case errors.Is(err, stats.ErrFollowersQueryFailed):
		return CodeFollowersQueryFailed
	case errors.Is(err, stats.ErrTrendQueryFailed):
		return CodeTrendQueryFailed
	case errors.Is(err, database.ErrSchemaMissing):
		return CodeSchemaMissing
	case errors.Is(err, auth.ErrMissingCredential):
		return CodeMissingCredential
	case errors.Is(err, identity.ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	}

	var ge *fetcher.GraphError
	if errors.As(err, &ge) {
		switch ge.Kind {
		case fetcher.KindAuthExpired:
			return CodeUpstreamAuthExpired
		case fetcher.KindRateLimited:
			return CodeUpstreamRateLimited
		case fetcher.KindUnsupportedMetric:
			return CodeUpstreamUnsupportedMetric
		case fetcher.KindTransient:
			return CodeUpstreamTransient
		default:
			return CodeUpstreamError
		}
	}

	if errors.Is(err, ErrPersistence) || errors.Is(err, database.ErrInvalidRow) || errors.Is(err, database.ErrNotFound) {
		return CodePersistence
	}
	return CodeServerError
}

// IsFatal reports whether err must stop the whole invocation rather than one account.
func IsFatal(err error) bool {
	return errors.Is(err, database.ErrSchemaMissing)
}
