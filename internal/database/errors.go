package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrSchemaMissing = errors.New("schema missing")
	ErrNotFound      = errors.New("not found")
)

// Postgres SQLSTATE codes for objects that do not exist in this deployment.
const (
	pqUndefinedTable  = pq.ErrorCode("42P01")
	pqUndefinedColumn = pq.ErrorCode("42703")
)

// SchemaMissingError names the relation or column a query expected.
type SchemaMissingError struct {
	Op     string
	Object string
	Err    error
}

func (e *SchemaMissingError) Error() string {
	return fmt.Sprintf("%s: required store %q does not exist, run migrations: %v", e.Op, e.Object, e.Err)
}

func (e *SchemaMissingError) Unwrap() error { return e.Err }

func (e *SchemaMissingError) Is(target error) bool { return target == ErrSchemaMissing }

// Classify wraps err with op and maps driver errors onto the package sentinels.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUndefinedTable, pqUndefinedColumn:
			object := pqErr.Table
			if object == "" {
				object = pqErr.Column
			}
			if object == "" {
				object = pqErr.Message
			}
			return &SchemaMissingError{Op: op, Object: object, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func IsSchemaMissing(err error) bool {
	return errors.Is(err, ErrSchemaMissing)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
