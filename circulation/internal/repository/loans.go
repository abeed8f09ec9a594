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

var loanColumns = []string{"id", "title_id", "member_id", "quantity", "loan_date", "due_date", "return_date", "status", "fine", "notes"}

func (s *store) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	b := s.forUpdate(s.qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id}))

	var loan model.Loan
	if err := s.get(ctx, &loan, b, "GetLoan"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errors.Wrapf(errs.ErrLoanNotFound, "loan %d", id)
		}
		return model.Loan{}, errors.Wrap(err, "GetLoan")
	}
	return loan, nil
}

func (s *store) HasOpenLoan(ctx context.Context, titleID, memberID int64) (bool, error) {
	return s.exists(ctx, s.qb.Select("COUNT(*)").
		From(loansTableName).
		Where(sq.Eq{"title_id": titleID, "member_id": memberID, "status": model.LoanOpen}), "HasOpenLoan")
}

func (s *store) OldestOpenLoan(ctx context.Context, titleID, memberID int64) (model.Loan, error) {
	b := s.qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"title_id": titleID, "status": model.LoanOpen})
	if memberID != 0 {
		b = b.Where(sq.Eq{"member_id": memberID})
	}
	b = s.forUpdate(b.OrderBy("loan_date ASC", "id ASC").Limit(1))

	var loan model.Loan
	if err := s.get(ctx, &loan, b, "OldestOpenLoan"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errors.Wrapf(errs.ErrLoanNotFound, "no open loan for title %d", titleID)
		}
		return model.Loan{}, errors.Wrap(err, "OldestOpenLoan")
	}
	return loan, nil
}

func (s *store) CountOpenLoansByMember(ctx context.Context, memberID int64) (int, error) {
	return s.count(ctx, s.qb.Select("COUNT(*)").
		From(loansTableName).
		Where(sq.Eq{"member_id": memberID, "status": model.LoanOpen}), "CountOpenLoansByMember")
}

func (s *store) CountOpenLoansByTitle(ctx context.Context, titleID int64) (int, error) {
	return s.count(ctx, s.qb.Select("COUNT(*)").
		From(loansTableName).
		Where(sq.Eq{"title_id": titleID, "status": model.LoanOpen}), "CountOpenLoansByTitle")
}

func (s *store) InsertLoan(ctx context.Context, l model.Loan) (int64, error) {
	b := s.qb.Insert(loansTableName).
		Columns("title_id", "member_id", "quantity", "loan_date", "due_date", "status", "fine", "notes").
		Values(l.TitleID, l.MemberID, l.Quantity, l.LoanDate, l.DueDate, model.LoanOpen, 0, l.Notes)
	return s.insert(ctx, b, "InsertLoan")
}

// CloseLoan freezes the fine. Only an open loan can be closed; nil notes keep the stored value.
func (s *store) CloseLoan(ctx context.Context, id int64, returnedAt time.Time, fine int64, notes *string) error {
	b := s.qb.Update(loansTableName).
		Set("status", model.LoanClosed).
		Set("return_date", returnedAt).
		Set("fine", fine)
	if notes != nil {
		b = b.Set("notes", *notes)
	}
	b = b.Where(sq.Eq{"id": id, "status": model.LoanOpen})

	n, err := s.exec(ctx, b, "CloseLoan")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrLoanClosed, "loan %d", id)
	}
	return nil
}

func loanFilter(b sq.SelectBuilder, f model.LoanFilter, now time.Time) sq.SelectBuilder {
	switch f.Status {
	case model.LoanOpen, model.LoanClosed:
		b = b.Where(sq.Eq{"l.status": f.Status})
	case model.LoanOverdue:
		b = b.Where(sq.Eq{"l.status": model.LoanOpen}).Where(sq.Lt{"l.due_date": now})
	}
	if f.MemberID != 0 {
		b = b.Where(sq.Eq{"l.member_id": f.MemberID})
	}
	if f.TitleID != 0 {
		b = b.Where(sq.Eq{"l.title_id": f.TitleID})
	}
	return b
}

func (s *store) ListLoans(ctx context.Context, f model.LoanFilter, now time.Time) ([]model.LoanView, int, error) {
	total, err := s.count(ctx, loanFilter(s.qb.Select("COUNT(*)").From(loansTableName+" l"), f, now), "ListLoans.count")
	if err != nil {
		return nil, 0, err
	}

	b := s.qb.Select(
		"l.id", "l.title_id", "l.member_id", "l.quantity", "l.loan_date", "l.due_date",
		"l.return_date", "l.status", "l.fine", "l.notes",
		"t.title AS title_name", "t.isbn AS title_isbn", "m.name AS member_name", "m.member_code",
	).
		From(loansTableName + " l").
		Join(titlesTableName + " t ON t.id = l.title_id").
		Join(membersTableName + " m ON m.id = l.member_id").
		OrderBy("l.loan_date DESC", "l.id DESC")
	b = page(loanFilter(b, f, now), f.PageQuery)

	loans := make([]model.LoanView, 0)
	if err := s.selectAll(ctx, &loans, b, "ListLoans"); err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (s *store) LoanTotals(ctx context.Context, now time.Time) (model.LoanTotals, error) {
	b := s.qb.Select(
		"CAST(COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0) AS BIGINT) AS open_loans",
	).
		Column("CAST(COALESCE(SUM(CASE WHEN status = 'open' AND due_date < ? THEN 1 ELSE 0 END), 0) AS BIGINT) AS overdue_loans", now).
		Column("CAST(COALESCE(SUM(fine), 0) AS BIGINT) AS fines_collected").
		From(loansTableName)

	var totals model.LoanTotals
	if err := s.get(ctx, &totals, b, "LoanTotals"); err != nil {
		return model.LoanTotals{}, errors.Wrap(err, "LoanTotals")
	}
	return totals, nil
}
