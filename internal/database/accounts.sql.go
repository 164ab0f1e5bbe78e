package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (id, username, ig_user_id, page_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, username, ig_user_id, page_id, created_at, updated_at
`

type CreateAccountParams struct {
	ID        uuid.UUID `validate:"required"`
	Username  string    `validate:"required"`
	IgUserID  int64     `validate:"gt=0"`
	PageID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount,
		arg.ID,
		arg.Username,
		arg.IgUserID,
		arg.PageID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.IgUserID,
		&i.PageID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAccountByID = `-- name: GetAccountByID :one
SELECT id, username, ig_user_id, page_id, created_at, updated_at FROM accounts WHERE id = $1
`

func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByID, id)
	return scanAccount(row)
}

const getAccountByIgUserID = `-- name: GetAccountByIgUserID :one
SELECT id, username, ig_user_id, page_id, created_at, updated_at FROM accounts WHERE ig_user_id = $1
`

func (q *Queries) GetAccountByIgUserID(ctx context.Context, igUserID int64) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByIgUserID, igUserID)
	return scanAccount(row)
}

const getAccountByUsername = `-- name: GetAccountByUsername :one
SELECT id, username, ig_user_id, page_id, created_at, updated_at FROM accounts WHERE lower(username) = lower($1) LIMIT 1
`

func (q *Queries) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByUsername, username)
	return scanAccount(row)
}

const getAccountByLegacyID = `-- name: GetAccountByLegacyID :one
SELECT a.id, a.username, a.ig_user_id, a.page_id, a.created_at, a.updated_at FROM accounts a
JOIN account_legacy_ids l ON l.account_id = a.id
WHERE l.legacy_id = $1
LIMIT 1
`

func (q *Queries) GetAccountByLegacyID(ctx context.Context, legacyID int64) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByLegacyID, legacyID)
	return scanAccount(row)
}

const addAccountLegacyID = `-- name: AddAccountLegacyID :exec
INSERT INTO account_legacy_ids (account_id, legacy_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

type AddAccountLegacyIDParams struct {
	AccountID uuid.UUID
	LegacyID  int64
}

func (q *Queries) AddAccountLegacyID(ctx context.Context, arg AddAccountLegacyIDParams) error {
	_, err := q.db.ExecContext(ctx, addAccountLegacyID, arg.AccountID, arg.LegacyID)
	return err
}

const listAccountLegacyIDs = `-- name: ListAccountLegacyIDs :many
SELECT legacy_id FROM account_legacy_ids WHERE account_id = $1 ORDER BY legacy_id
`

func (q *Queries) ListAccountLegacyIDs(ctx context.Context, accountID uuid.UUID) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listAccountLegacyIDs, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var legacyID int64
		if err := rows.Scan(&legacyID); err != nil {
			return nil, err
		}
		items = append(items, legacyID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.IgUserID,
		&i.PageID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
