package attendance

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies storage failures callers react to.
type Kind int

const (
	KindOther Kind = iota
	KindConflict
	KindNotFound
	KindInvalidReference
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidReference:
		return "invalid_reference"
	default:
		return "other"
	}
}

// StoreError is the typed error returned by the repository.
type StoreError struct {
	Kind       Kind
	Constraint string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownRange     = errors.New("unknown range")
	ErrDateOrRangeEmpty = errors.New("date or range required")
)

// KindOf returns the classification of err, KindOther when it is not a StoreError.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// IsConflict reports a unique-key collision.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports a missing record.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidReference reports a foreign key pointing at nothing.
func IsInvalidReference(err error) bool { return KindOf(err) == KindInvalidReference }

func notFound() error {
	return &StoreError{Kind: KindNotFound, Err: ErrNotFound}
}

// translate maps driver errors onto StoreError; nil stays nil.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &StoreError{Kind: KindNotFound, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &StoreError{Kind: KindConflict, Constraint: pgErr.ConstraintName, Err: err}
		case pgerrcode.ForeignKeyViolation:
			return &StoreError{Kind: KindInvalidReference, Constraint: pgErr.ConstraintName, Err: err}
		case pgerrcode.InvalidTextRepresentation:
			// A malformed uuid can never match a row.
			return &StoreError{Kind: KindNotFound, Err: err}
		}
	}
	return err
}
