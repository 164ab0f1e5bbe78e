package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/stats"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"schema", &database.SchemaMissingError{Op: "op", Object: "media_records", Err: errors.New("x")}, CodeSchemaMissing},
		{"credential", fmt.Errorf("wrap: %w", auth.ErrMissingCredential), CodeMissingCredential},
		{"account", fmt.Errorf("wrap: %w", identity.ErrAccountNotFound), CodeAccountNotFound},
		{"followers", fmt.Errorf("%w: %w", stats.ErrFollowersQueryFailed, errors.New("x")), CodeFollowersQueryFailed},
		{"trend", fmt.Errorf("%w: %w", stats.ErrTrendQueryFailed, errors.New("x")), CodeTrendQueryFailed},
		{"trend store missing", fmt.Errorf("%w: media aggregates: %w", stats.ErrTrendQueryFailed, &database.SchemaMissingError{Op: "op", Object: "daily_media_aggregates", Err: errors.New("x")}), CodeTrendQueryFailed},
		{"invalid", ErrInvalidRequest, CodeInvalidRequest},
		{"expired", &fetcher.GraphError{Kind: fetcher.KindAuthExpired}, CodeUpstreamAuthExpired},
		{"rate", &fetcher.GraphError{Kind: fetcher.KindRateLimited}, CodeUpstreamRateLimited},
		{"unsupported", &fetcher.GraphError{Kind: fetcher.KindUnsupportedMetric}, CodeUpstreamUnsupportedMetric},
		{"transient", fmt.Errorf("list: %w", &fetcher.GraphError{Kind: fetcher.KindTransient}), CodeUpstreamTransient},
		{"upstream", &fetcher.GraphError{Kind: fetcher.KindUnknown}, CodeUpstreamError},
		{"persistence", fmt.Errorf("%w: %w", ErrPersistence, errors.New("x")), CodePersistence},
		{"invalid row", fmt.Errorf("upsert: %w", database.ErrInvalidRow), CodePersistence},
		{"other", errors.New("boom"), CodeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("x: %w", database.ErrSchemaMissing)))
	assert.False(t, IsFatal(ErrPersistence))
	assert.False(t, IsFatal(nil))
}
