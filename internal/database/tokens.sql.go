package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const createToken = `-- name: CreateToken :one
INSERT INTO tokens (id, account_id, encrypted_access_token, nonce, profile_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (account_id) DO UPDATE SET
    encrypted_access_token = EXCLUDED.encrypted_access_token,
    nonce = EXCLUDED.nonce,
    profile_id = EXCLUDED.profile_id,
    updated_at = EXCLUDED.updated_at
RETURNING id, account_id, encrypted_access_token, nonce, profile_id, created_at, updated_at
`

type CreateTokenParams struct {
	ID                   uuid.UUID
	AccountID            uuid.UUID
	EncryptedAccessToken []byte
	Nonce                []byte
	ProfileID            sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (q *Queries) CreateToken(ctx context.Context, arg CreateTokenParams) (Token, error) {
	row := q.db.QueryRowContext(ctx, createToken,
		arg.ID,
		arg.AccountID,
		arg.EncryptedAccessToken,
		arg.Nonce,
		arg.ProfileID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var i Token
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.EncryptedAccessToken,
		&i.Nonce,
		&i.ProfileID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTokenByAccount = `-- name: GetTokenByAccount :one
SELECT id, account_id, encrypted_access_token, nonce, profile_id, created_at, updated_at FROM tokens WHERE account_id = $1
`

func (q *Queries) GetTokenByAccount(ctx context.Context, accountID uuid.UUID) (Token, error) {
	row := q.db.QueryRowContext(ctx, getTokenByAccount, accountID)
	var i Token
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.EncryptedAccessToken,
		&i.Nonce,
		&i.ProfileID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listAccountTokens = `-- name: ListAccountTokens :many
SELECT t.account_id, a.username, a.ig_user_id, a.page_id, t.encrypted_access_token, t.nonce
FROM tokens t
JOIN accounts a ON a.id = t.account_id
ORDER BY a.created_at, a.id
`

type ListAccountTokensRow struct {
	AccountID            uuid.UUID
	Username             string
	IgUserID             int64
	PageID               string
	EncryptedAccessToken []byte
	Nonce                []byte
}

func (q *Queries) ListAccountTokens(ctx context.Context) ([]ListAccountTokensRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccountTokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAccountTokensRow
	for rows.Next() {
		var i ListAccountTokensRow
		if err := rows.Scan(
			&i.AccountID,
			&i.Username,
			&i.IgUserID,
			&i.PageID,
			&i.EncryptedAccessToken,
			&i.Nonce,
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
