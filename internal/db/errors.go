package db

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("db: duplicate key")
	// ErrForeignKey is returned when a write references a missing row.
	ErrForeignKey = errors.New("db: foreign key violation")
)

// constraintError keeps the driver error reachable while matching a sentinel.
type constraintError struct {
	sentinel error
	cause    error
}

func (e *constraintError) Error() string {
	return fmt.Sprintf("%v: %v", e.sentinel, e.cause)
}

func (e *constraintError) Is(target error) bool { return target == e.sentinel }
func (e *constraintError) Unwrap() error        { return e.cause }

// mapErr translates driver-specific constraint failures into package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if sentinel := classify(err); sentinel != nil {
		return &constraintError{sentinel: sentinel, cause: err}
	}
	return err
}

func classify(err error) error {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrDuplicate
		case sqlite3.ErrConstraintForeignKey:
			return ErrForeignKey
		}
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return ErrDuplicate
		case 1216, 1452: // ER_NO_REFERENCED_ROW, ER_NO_REFERENCED_ROW_2
			return ErrForeignKey
		}
		return nil
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrDuplicate
		case "23503": // foreign_key_violation
			return ErrForeignKey
		}
	}
	return nil
}
