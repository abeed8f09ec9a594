package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

var titleColumns = []string{"id", "isbn", "title", "author", "total_copies", "available_copies", "created_at", "updated_at"}

func (s *store) GetTitle(ctx context.Context, id int64) (model.Title, error) {
	b := s.forUpdate(s.qb.Select(titleColumns...).
		From(titlesTableName).
		Where(sq.Eq{"id": id}))

	var title model.Title
	if err := s.get(ctx, &title, b, "GetTitle"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Title{}, errors.Wrapf(errs.ErrTitleNotFound, "title %d", id)
		}
		return model.Title{}, errors.Wrap(err, "GetTitle")
	}
	return title, nil
}

func (s *store) GetTitleByISBN(ctx context.Context, isbn string) (model.Title, error) {
	b := s.forUpdate(s.qb.Select(titleColumns...).
		From(titlesTableName).
		Where(sq.Eq{"isbn": isbn}))

	var title model.Title
	if err := s.get(ctx, &title, b, "GetTitleByISBN"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Title{}, errors.Wrapf(errs.ErrTitleNotFound, "isbn %q", isbn)
		}
		return model.Title{}, errors.Wrap(err, "GetTitleByISBN")
	}
	return title, nil
}

func (s *store) CreateTitle(ctx context.Context, t model.Title) (int64, error) {
	b := s.qb.Insert(titlesTableName).
		Columns("isbn", "title", "author", "total_copies", "available_copies", "created_at", "updated_at").
		Values(t.ISBN, t.Title, t.Author, t.TotalCopies, t.AvailableCopies, t.CreatedAt, t.UpdatedAt)
	return s.insert(ctx, b, "CreateTitle")
}

// DecrementAvailable takes qty copies off the shelf. The guard in the WHERE
// clause keeps available_copies from going negative under concurrent writers.
func (s *store) DecrementAvailable(ctx context.Context, titleID int64, qty int, now time.Time) error {
	b := s.qb.Update(titlesTableName).
		Set("available_copies", sq.Expr("available_copies - ?", qty)).
		Set("updated_at", now).
		Where(sq.Eq{"id": titleID}).
		Where(sq.GtOrEq{"available_copies": qty})

	n, err := s.exec(ctx, b, "DecrementAvailable")
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	title, err := s.GetTitle(ctx, titleID)
	if err != nil {
		return err
	}
	return errors.Wrapf(errs.ErrInsufficientStock, "title %d: requested %d, available %d", titleID, qty, title.AvailableCopies)
}

// IncrementAvailable puts qty copies back, never exceeding total_copies.
func (s *store) IncrementAvailable(ctx context.Context, titleID int64, qty int, now time.Time) error {
	b := s.qb.Update(titlesTableName).
		Set("available_copies", sq.Expr(
			"CASE WHEN available_copies + ? > total_copies THEN total_copies ELSE available_copies + ? END", qty, qty)).
		Set("updated_at", now).
		Where(sq.Eq{"id": titleID})

	n, err := s.exec(ctx, b, "IncrementAvailable")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrTitleNotFound, "title %d", titleID)
	}
	return nil
}

// ResizeTitle changes total_copies and re-derives available_copies from the
// copies currently out. Available is clamped at zero when the new total is
// below the borrowed count.
func (s *store) ResizeTitle(ctx context.Context, titleID int64, newTotal int, now time.Time) (model.Title, error) {
	if newTotal < 1 {
		return model.Title{}, errors.Wrapf(errs.ErrInvalidArgument, "total copies %d", newTotal)
	}
	title, err := s.GetTitle(ctx, titleID)
	if err != nil {
		return model.Title{}, err
	}

	available := newTotal - title.Borrowed()
	if available < 0 {
		available = 0
	}

	b := s.qb.Update(titlesTableName).
		Set("total_copies", newTotal).
		Set("available_copies", available).
		Set("updated_at", now).
		Where(sq.Eq{"id": titleID})
	if _, err := s.exec(ctx, b, "ResizeTitle"); err != nil {
		return model.Title{}, err
	}

	title.TotalCopies = newTotal
	title.AvailableCopies = available
	title.UpdatedAt = now
	return title, nil
}

// DeleteTitle removes the title with its reservations and closed loan history.
// Open loans keep the foreign key alive and surface as ErrStillReferenced.
func (s *store) DeleteTitle(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, s.qb.Delete(reservationsTableName).Where(sq.Eq{"title_id": id}), "DeleteTitle.reservations"); err != nil {
		return err
	}
	closed := s.qb.Delete(loansTableName).
		Where(sq.Eq{"title_id": id}).
		Where(sq.Eq{"status": model.LoanClosed})
	if _, err := s.exec(ctx, closed, "DeleteTitle.loans"); err != nil {
		return err
	}

	n, err := s.exec(ctx, s.qb.Delete(titlesTableName).Where(sq.Eq{"id": id}), "DeleteTitle")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrTitleNotFound, "title %d", id)
	}
	return nil
}

func (s *store) InventoryTotals(ctx context.Context) (model.InventoryTotals, error) {
	b := s.qb.Select(
		"COUNT(*) AS titles",
		"CAST(COALESCE(SUM(total_copies), 0) AS BIGINT) AS total_copies",
		"CAST(COALESCE(SUM(available_copies), 0) AS BIGINT) AS available_copies",
	).From(titlesTableName)

	var totals model.InventoryTotals
	if err := s.get(ctx, &totals, b, "InventoryTotals"); err != nil {
		return model.InventoryTotals{}, errors.Wrap(err, "InventoryTotals")
	}
	return totals, nil
}
