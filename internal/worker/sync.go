package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluffyriot/rpinsights/internal/logging"
)

// SyncMediaAll runs SyncMedia for every account with a stored credential, one
// account after another. A panic or ordinary failure skips that account; a
// fatal error or cancellation stops the loop.
func (w *Worker) SyncMediaAll(ctx context.Context, lookbackDays int) ([]MediaSyncResult, error) {
	logging.Info().Msg("Worker: starting media sync for all accounts")

	creds, undecryptable, err := w.Credentials.List(ctx)
	if err != nil {
		return nil, err
	}
	if undecryptable > 0 {
		logging.Warn().Int("count", undecryptable).Msg("Worker: skipping undecryptable credentials")
	}

	var results []MediaSyncResult
	for _, cred := range creds {
		account := cred.AccountID.String()

		res, err := func() (res MediaSyncResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					logging.Error().Str("account", account).Interface("panic", r).Msg("Worker: panic in media sync")
					err = fmt.Errorf("panic in media sync: %v", r)
				}
			}()
			return w.SyncMedia(ctx, account, lookbackDays)
		}()
		res.AccountID = cred.AccountID
		results = append(results, res)

		if err == nil {
			continue
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) {
			return results, err
		}
		logging.Warn().Err(err).Str("account", account).Str("code", string(CodeOf(err))).Msg("Worker: media sync skipped account")
	}

	logging.Info().Int("accounts", len(results)).Msg("Worker: completed media sync")
	return results, nil
}
