package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/google/uuid"
)

// CaptureFollowers stores one follower sample for the account's primary
// numeric id on the UTC day of at. A later capture on the same day replaces it.
func (w *Worker) CaptureFollowers(ctx context.Context, id identity.Identity, followers int64, at time.Time) error {
	igUserID, ok := id.PrimaryLegacyID()
	if !ok {
		metrics.FollowerCaptures.WithLabelValues("skipped").Inc()
		return fmt.Errorf("account %s has no numeric id: %w", id.CanonicalID, identity.ErrAccountNotFound)
	}

	err := w.Store.UpsertDailyFollowerCount(ctx, database.UpsertDailyFollowerCountParams{
		IgUserID:       igUserID,
		Day:            helpers.DayOf(at),
		FollowersCount: followers,
		CapturedAt:     at.UTC(),
	})
	if err != nil {
		metrics.FollowerCaptures.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.FollowerCaptures.WithLabelValues("ok").Inc()
	return nil
}

// captureFromProfile piggy-backs a follower sample on a profile read. Failures
// are logged and never fail the caller.
func (w *Worker) captureFromProfile(ctx context.Context, id identity.Identity, token string) {
	igUserID, ok := id.PrimaryLegacyID()
	if !ok {
		return
	}
	profile, err := w.Graph.FetchProfile(ctx, igUserID, token)
	if err != nil {
		logging.Warn().Err(err).Str("account", id.CanonicalID.String()).Msg("Followers: profile fetch failed")
		return
	}
	if err := w.CaptureFollowers(ctx, id, profile.FollowersCount, w.now()); err != nil {
		logging.Warn().Err(err).Str("account", id.CanonicalID.String()).Msg("Followers: capture failed")
	}
}

type ProfileCard struct {
	AccountID      uuid.UUID `json:"accountId"`
	Username       string    `json:"username"`
	FollowersCount int64     `json:"followersCount"`
	MediaCount     int64     `json:"mediaCount"`
	CapturedDay    string    `json:"capturedDay"`
}

// FetchProfileCard reads the live profile for an account and records the
// follower count it carries.
func (w *Worker) FetchProfileCard(ctx context.Context, hint string) (ProfileCard, error) {
	id, err := w.Resolver.Resolve(ctx, hint)
	if err != nil {
		return ProfileCard{}, err
	}
	igUserID, ok := id.PrimaryLegacyID()
	if !ok {
		return ProfileCard{}, fmt.Errorf("account %s has no numeric id: %w", id.CanonicalID, identity.ErrAccountNotFound)
	}
	token, err := w.Credentials.Get(ctx, id.CanonicalID)
	if err != nil {
		return ProfileCard{}, err
	}
	pageToken, err := w.Graph.ExchangeToken(ctx, token, id.PageID)
	if err != nil {
		return ProfileCard{}, err
	}
	profile, err := w.Graph.FetchProfile(ctx, igUserID, pageToken)
	if err != nil {
		return ProfileCard{}, err
	}

	at := w.now()
	if err := w.CaptureFollowers(ctx, id, profile.FollowersCount, at); err != nil {
		logging.Warn().Err(err).Str("account", id.CanonicalID.String()).Msg("Followers: capture failed")
	} else {
		w.invalidate(id.CanonicalID)
	}

	username := profile.Username
	if username == "" {
		username = id.Username
	}
	return ProfileCard{
		AccountID:      id.CanonicalID,
		Username:       username,
		FollowersCount: profile.FollowersCount,
		MediaCount:     profile.MediaCount,
		CapturedDay:    helpers.DayOf(at),
	}, nil
}
