package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalidRow = errors.New("invalid row")

// Store is the persistence boundary used by jobs and readers. Every method
// returns errors already passed through Classify, and write params are
// validated before they reach the database.
type Store struct {
	db       *sql.DB
	q        *Queries
	validate *validator.Validate
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		q:        New(db),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Store) Queries() *Queries { return s.q }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) check(op string, arg any) error {
	if err := s.validate.Struct(arg); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidRow, err)
	}
	return nil
}

// ExecTx runs fn inside a transaction, rolling back on error.
func (s *Store) ExecTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(s.q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Accounts

func (s *Store) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	if err := s.check("create account", arg); err != nil {
		return Account{}, err
	}
	a, err := s.q.CreateAccount(ctx, arg)
	return a, Classify("create account", err)
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	a, err := s.q.GetAccountByID(ctx, id)
	return a, Classify("get account", err)
}

func (s *Store) GetAccountByIgUserID(ctx context.Context, igUserID int64) (Account, error) {
	a, err := s.q.GetAccountByIgUserID(ctx, igUserID)
	return a, Classify("get account by ig user id", err)
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	a, err := s.q.GetAccountByUsername(ctx, username)
	return a, Classify("get account by username", err)
}

func (s *Store) GetAccountByLegacyID(ctx context.Context, legacyID int64) (Account, error) {
	a, err := s.q.GetAccountByLegacyID(ctx, legacyID)
	return a, Classify("get account by legacy id", err)
}

func (s *Store) AddAccountLegacyID(ctx context.Context, arg AddAccountLegacyIDParams) error {
	return Classify("add legacy id", s.q.AddAccountLegacyID(ctx, arg))
}

func (s *Store) ListAccountLegacyIDs(ctx context.Context, accountID uuid.UUID) ([]int64, error) {
	ids, err := s.q.ListAccountLegacyIDs(ctx, accountID)
	return ids, Classify("list legacy ids", err)
}

// Tokens

func (s *Store) CreateToken(ctx context.Context, arg CreateTokenParams) (Token, error) {
	t, err := s.q.CreateToken(ctx, arg)
	return t, Classify("create token", err)
}

func (s *Store) GetTokenByAccount(ctx context.Context, accountID uuid.UUID) (Token, error) {
	t, err := s.q.GetTokenByAccount(ctx, accountID)
	return t, Classify("get token", err)
}

func (s *Store) ListAccountTokens(ctx context.Context) ([]ListAccountTokensRow, error) {
	rows, err := s.q.ListAccountTokens(ctx)
	return rows, Classify("list account tokens", err)
}

// Media

// UpsertMediaRecords writes all rows in one transaction and returns the number written.
func (s *Store) UpsertMediaRecords(ctx context.Context, rows []UpsertMediaRecordParams) (int, error) {
	for _, r := range rows {
		if err := s.check("upsert media", r); err != nil {
			return 0, err
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.ExecTx(ctx, func(q *Queries) error {
		for _, r := range rows {
			if err := q.UpsertMediaRecord(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, Classify("upsert media", err)
	}
	return len(rows), nil
}

func (s *Store) ListMediaRecordsForDay(ctx context.Context, arg ListMediaRecordsForDayParams) ([]MediaRecord, error) {
	rows, err := s.q.ListMediaRecordsForDay(ctx, arg)
	return rows, Classify("list media for day", err)
}

func (s *Store) UpsertDailyMediaAggregate(ctx context.Context, arg UpsertDailyMediaAggregateParams) error {
	if err := s.check("upsert daily aggregate", arg); err != nil {
		return err
	}
	return Classify("upsert daily aggregate", s.q.UpsertDailyMediaAggregate(ctx, arg))
}

func (s *Store) ListDailyMediaAggregates(ctx context.Context, arg ListDailyMediaAggregatesParams) ([]DailyMediaAggregate, error) {
	rows, err := s.q.ListDailyMediaAggregates(ctx, arg)
	return rows, Classify("list daily aggregates", err)
}

// Account snapshots

func (s *Store) UpsertAccountDailySnapshot(ctx context.Context, arg UpsertAccountDailySnapshotParams) error {
	if err := s.check("upsert account snapshot", arg); err != nil {
		return err
	}
	return Classify("upsert account snapshot", s.q.UpsertAccountDailySnapshot(ctx, arg))
}

func (s *Store) ListAccountDailySnapshots(ctx context.Context, arg ListAccountDailySnapshotsParams) ([]AccountDailySnapshot, error) {
	rows, err := s.q.ListAccountDailySnapshots(ctx, arg)
	return rows, Classify("list account snapshots", err)
}

// Followers

func (s *Store) UpsertDailyFollowerCount(ctx context.Context, arg UpsertDailyFollowerCountParams) error {
	if err := s.check("upsert follower count", arg); err != nil {
		return err
	}
	return Classify("upsert follower count", s.q.UpsertDailyFollowerCount(ctx, arg))
}

func (s *Store) ListDailyFollowerCounts(ctx context.Context, arg ListDailyFollowerCountsParams) ([]DailyFollowerCount, error) {
	if len(arg.IgUserIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.ListDailyFollowerCounts(ctx, arg)
	return rows, Classify("list follower counts", err)
}
