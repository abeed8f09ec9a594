package repository

import (
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
)

// classify maps driver errors onto the errs taxonomy. Unknown errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.Wrap(errs.ErrConflict, err.Error())
		case sqlite3.ErrConstraint:
			switch liteErr.ExtendedCode {
			case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
				return uniqueViolation(liteErr.Error(), err)
			case sqlite3.ErrConstraintForeignKey:
				return errors.Wrap(errs.ErrStillReferenced, err.Error())
			case sqlite3.ErrConstraintCheck:
				return checkViolation(liteErr.Error(), err)
			}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return errors.Wrap(errs.ErrConflict, err.Error())
		case pgerrcode.UniqueViolation:
			return uniqueViolation(pgErr.ConstraintName, err)
		case pgerrcode.ForeignKeyViolation:
			return errors.Wrap(errs.ErrStillReferenced, err.Error())
		case pgerrcode.CheckViolation:
			return checkViolation(pgErr.ConstraintName, err)
		}
	}
	return err
}

// uniqueViolation resolves the violated index from the SQLite message
// ("UNIQUE constraint failed: loans.title_id, loans.member_id") or the PostgreSQL constraint name.
func uniqueViolation(detail string, err error) error {
	switch {
	case strings.Contains(detail, "isbn"):
		return errors.Wrap(errs.ErrDuplicateISBN, err.Error())
	case strings.Contains(detail, "member_code"):
		return errors.Wrap(errs.ErrDuplicateMemberCode, err.Error())
	case strings.Contains(detail, "loans"):
		return errors.Wrap(errs.ErrDuplicateActiveLoan, err.Error())
	case strings.Contains(detail, "reservations"):
		return errors.Wrap(errs.ErrDuplicateReservation, err.Error())
	}
	return err
}

// availableRangeCheck guards 0 <= available_copies <= total_copies on titles.
const availableRangeCheck = "titles_available_range"

// checkViolation reports the stock range constraint as insufficient stock.
// Any other CHECK failure means a value the service should have rejected.
func checkViolation(detail string, err error) error {
	if strings.Contains(detail, availableRangeCheck) {
		return errors.Wrap(errs.ErrInsufficientStock, err.Error())
	}
	return errors.Wrap(errs.ErrInvalidArgument, err.Error())
}
