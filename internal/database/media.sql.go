package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const upsertMediaRecord = `-- name: UpsertMediaRecord :exec
INSERT INTO media_records (
    account_id, media_id, media_type, permalink, caption, published_at, published_day,
    like_count, comments_count, reach, impressions, saves, shares, plays, raw_payload, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (account_id, media_id) DO UPDATE SET
    media_type = EXCLUDED.media_type,
    permalink = EXCLUDED.permalink,
    caption = EXCLUDED.caption,
    published_at = EXCLUDED.published_at,
    published_day = EXCLUDED.published_day,
    like_count = EXCLUDED.like_count,
    comments_count = EXCLUDED.comments_count,
    reach = EXCLUDED.reach,
    impressions = EXCLUDED.impressions,
    saves = EXCLUDED.saves,
    shares = EXCLUDED.shares,
    plays = EXCLUDED.plays,
    raw_payload = EXCLUDED.raw_payload,
    updated_at = EXCLUDED.updated_at
`

type UpsertMediaRecordParams struct {
	AccountID     uuid.UUID `validate:"required"`
	MediaID       string    `validate:"required"`
	MediaType     string
	Permalink     string
	Caption       string
	PublishedAt   time.Time `validate:"required"`
	PublishedDay  string    `validate:"required,datetime=2006-01-02"`
	LikeCount     int64     `validate:"gte=0"`
	CommentsCount int64     `validate:"gte=0"`
	Reach         sql.NullInt64
	Impressions   sql.NullInt64
	Saves         sql.NullInt64
	Shares        sql.NullInt64
	Plays         sql.NullInt64
	RawPayload    json.RawMessage `validate:"required"`
	UpdatedAt     time.Time       `validate:"required"`
}

func (q *Queries) UpsertMediaRecord(ctx context.Context, arg UpsertMediaRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertMediaRecord,
		arg.AccountID,
		arg.MediaID,
		arg.MediaType,
		arg.Permalink,
		arg.Caption,
		arg.PublishedAt,
		arg.PublishedDay,
		arg.LikeCount,
		arg.CommentsCount,
		arg.Reach,
		arg.Impressions,
		arg.Saves,
		arg.Shares,
		arg.Plays,
		arg.RawPayload,
		arg.UpdatedAt,
	)
	return err
}

const listMediaRecordsForDay = `-- name: ListMediaRecordsForDay :many
SELECT account_id, media_id, media_type, permalink, caption, published_at,
       to_char(published_day, 'YYYY-MM-DD') AS published_day,
       like_count, comments_count, reach, impressions, saves, shares, plays, raw_payload, updated_at
FROM media_records
WHERE account_id = $1 AND published_day = $2::date
ORDER BY published_at, media_id
`

type ListMediaRecordsForDayParams struct {
	AccountID uuid.UUID
	Day       string
}

func (q *Queries) ListMediaRecordsForDay(ctx context.Context, arg ListMediaRecordsForDayParams) ([]MediaRecord, error) {
	rows, err := q.db.QueryContext(ctx, listMediaRecordsForDay, arg.AccountID, arg.Day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MediaRecord
	for rows.Next() {
		var i MediaRecord
		if err := rows.Scan(
			&i.AccountID,
			&i.MediaID,
			&i.MediaType,
			&i.Permalink,
			&i.Caption,
			&i.PublishedAt,
			&i.PublishedDay,
			&i.LikeCount,
			&i.CommentsCount,
			&i.Reach,
			&i.Impressions,
			&i.Saves,
			&i.Shares,
			&i.Plays,
			&i.RawPayload,
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

const upsertDailyMediaAggregate = `-- name: UpsertDailyMediaAggregate :exec
INSERT INTO daily_media_aggregates (
    account_id, day, post_count, likes, comments, saves, shares, reach, impressions, plays
) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (account_id, day) DO UPDATE SET
    post_count = EXCLUDED.post_count,
    likes = EXCLUDED.likes,
    comments = EXCLUDED.comments,
    saves = EXCLUDED.saves,
    shares = EXCLUDED.shares,
    reach = EXCLUDED.reach,
    impressions = EXCLUDED.impressions,
    plays = EXCLUDED.plays
`

type UpsertDailyMediaAggregateParams struct {
	AccountID   uuid.UUID `validate:"required"`
	Day         string    `validate:"required,datetime=2006-01-02"`
	PostCount   int32     `validate:"gte=0"`
	Likes       int64     `validate:"gte=0"`
	Comments    int64     `validate:"gte=0"`
	Saves       int64     `validate:"gte=0"`
	Shares      int64     `validate:"gte=0"`
	Reach       int64     `validate:"gte=0"`
	Impressions int64     `validate:"gte=0"`
	Plays       int64     `validate:"gte=0"`
}

func (q *Queries) UpsertDailyMediaAggregate(ctx context.Context, arg UpsertDailyMediaAggregateParams) error {
	_, err := q.db.ExecContext(ctx, upsertDailyMediaAggregate,
		arg.AccountID,
		arg.Day,
		arg.PostCount,
		arg.Likes,
		arg.Comments,
		arg.Saves,
		arg.Shares,
		arg.Reach,
		arg.Impressions,
		arg.Plays,
	)
	return err
}

const listDailyMediaAggregates = `-- name: ListDailyMediaAggregates :many
SELECT account_id, to_char(day, 'YYYY-MM-DD') AS day, post_count, likes, comments, saves, shares, reach, impressions, plays
FROM daily_media_aggregates
WHERE account_id = $1 AND day BETWEEN $2::date AND $3::date
ORDER BY day
`

type ListDailyMediaAggregatesParams struct {
	AccountID uuid.UUID
	FromDay   string
	ToDay     string
}

func (q *Queries) ListDailyMediaAggregates(ctx context.Context, arg ListDailyMediaAggregatesParams) ([]DailyMediaAggregate, error) {
	rows, err := q.db.QueryContext(ctx, listDailyMediaAggregates, arg.AccountID, arg.FromDay, arg.ToDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyMediaAggregate
	for rows.Next() {
		var i DailyMediaAggregate
		if err := rows.Scan(
			&i.AccountID,
			&i.Day,
			&i.PostCount,
			&i.Likes,
			&i.Comments,
			&i.Saves,
			&i.Shares,
			&i.Reach,
			&i.Impressions,
			&i.Plays,
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
