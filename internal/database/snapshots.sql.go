package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const upsertAccountDailySnapshot = `-- name: UpsertAccountDailySnapshot :exec
INSERT INTO account_daily_snapshots (
    account_id, ig_user_id, day, reach, impressions, total_interactions, accounts_engaged, created_at, updated_at
) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $8)
ON CONFLICT (account_id, ig_user_id, day) DO UPDATE SET
    reach = EXCLUDED.reach,
    impressions = EXCLUDED.impressions,
    total_interactions = EXCLUDED.total_interactions,
    accounts_engaged = EXCLUDED.accounts_engaged,
    updated_at = EXCLUDED.updated_at
`

type UpsertAccountDailySnapshotParams struct {
	AccountID         uuid.UUID `validate:"required"`
	IgUserID          int64     `validate:"gt=0"`
	Day               string    `validate:"required,datetime=2006-01-02"`
	Reach             sql.NullInt64
	Impressions       sql.NullInt64
	TotalInteractions sql.NullInt64
	AccountsEngaged   sql.NullInt64
	UpdatedAt         time.Time `validate:"required"`
}

func (q *Queries) UpsertAccountDailySnapshot(ctx context.Context, arg UpsertAccountDailySnapshotParams) error {
	_, err := q.db.ExecContext(ctx, upsertAccountDailySnapshot,
		arg.AccountID,
		arg.IgUserID,
		arg.Day,
		arg.Reach,
		arg.Impressions,
		arg.TotalInteractions,
		arg.AccountsEngaged,
		arg.UpdatedAt,
	)
	return err
}

const listAccountDailySnapshots = `-- name: ListAccountDailySnapshots :many
SELECT account_id, ig_user_id, to_char(day, 'YYYY-MM-DD') AS day,
       reach, impressions, total_interactions, accounts_engaged, updated_at
FROM account_daily_snapshots
WHERE account_id = $1 AND day BETWEEN $2::date AND $3::date
ORDER BY day, updated_at
`

type ListAccountDailySnapshotsParams struct {
	AccountID uuid.UUID
	FromDay   string
	ToDay     string
}

func (q *Queries) ListAccountDailySnapshots(ctx context.Context, arg ListAccountDailySnapshotsParams) ([]AccountDailySnapshot, error) {
	rows, err := q.db.QueryContext(ctx, listAccountDailySnapshots, arg.AccountID, arg.FromDay, arg.ToDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountDailySnapshot
	for rows.Next() {
		var i AccountDailySnapshot
		if err := rows.Scan(
			&i.AccountID,
			&i.IgUserID,
			&i.Day,
			&i.Reach,
			&i.Impressions,
			&i.TotalInteractions,
			&i.AccountsEngaged,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertDailyFollowerCount = `-- name: UpsertDailyFollowerCount :exec
INSERT INTO daily_follower_counts (ig_user_id, day, followers_count, captured_at)
VALUES ($1, $2::date, $3, $4)
ON CONFLICT (ig_user_id, day) DO UPDATE SET
    followers_count = EXCLUDED.followers_count,
    captured_at = EXCLUDED.captured_at
`

type UpsertDailyFollowerCountParams struct {
	IgUserID       int64     `validate:"gt=0"`
	Day            string    `validate:"required,datetime=2006-01-02"`
	FollowersCount int64     `validate:"gte=0"`
	CapturedAt     time.Time `validate:"required"`
}

func (q *Queries) UpsertDailyFollowerCount(ctx context.Context, arg UpsertDailyFollowerCountParams) error {
	_, err := q.db.ExecContext(ctx, upsertDailyFollowerCount,
		arg.IgUserID,
		arg.Day,
		arg.FollowersCount,
		arg.CapturedAt,
	)
	return err
}

const listDailyFollowerCounts = `-- name: ListDailyFollowerCounts :many
SELECT ig_user_id, to_char(day, 'YYYY-MM-DD') AS day, followers_count, captured_at
FROM daily_follower_counts
WHERE ig_user_id = ANY($1::bigint[]) AND day BETWEEN $2::date AND $3::date
ORDER BY day, captured_at
`

type ListDailyFollowerCountsParams struct {
	IgUserIDs []int64
	FromDay   string
	ToDay     string
}

func (q *Queries) ListDailyFollowerCounts(ctx context.Context, arg ListDailyFollowerCountsParams) ([]DailyFollowerCount, error) {
	rows, err := q.db.QueryContext(ctx, listDailyFollowerCounts, pq.Array(arg.IgUserIDs), arg.FromDay, arg.ToDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyFollowerCount
	for rows.Next() {
		var i DailyFollowerCount
		if err := rows.Scan(
			&i.IgUserID,
			&i.Day,
			&i.FollowersCount,
			&i.CapturedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
