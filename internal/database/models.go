package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        uuid.UUID
	Username  string
	IgUserID  int64
	PageID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Token struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	EncryptedAccessToken []byte
	Nonce                []byte
	ProfileID            sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Day columns are read back as canonical YYYY-MM-DD strings.

type MediaRecord struct {
	AccountID     uuid.UUID
	MediaID       string
	MediaType     string
	Permalink     string
	Caption       string
	PublishedAt   time.Time
	PublishedDay  string
	LikeCount     int64
	CommentsCount int64
	Reach         sql.NullInt64
	Impressions   sql.NullInt64
	Saves         sql.NullInt64
	Shares        sql.NullInt64
	Plays         sql.NullInt64
	RawPayload    json.RawMessage
	UpdatedAt     time.Time
}

type DailyMediaAggregate struct {
	AccountID   uuid.UUID
	Day         string
	PostCount   int32
	Likes       int64
	Comments    int64
	Saves       int64
	Shares      int64
	Reach       int64
	Impressions int64
	Plays       int64
}

type AccountDailySnapshot struct {
	AccountID         uuid.UUID
	IgUserID          int64
	Day               string
	Reach             sql.NullInt64
	Impressions       sql.NullInt64
	TotalInteractions sql.NullInt64
	AccountsEngaged   sql.NullInt64
	UpdatedAt         time.Time
}

type DailyFollowerCount struct {
	IgUserID       int64
	Day            string
	FollowersCount int64
	CapturedAt     time.Time
}
