package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
)

const dateLayout = "2006-01-02"

type borrowed struct {
	loan   model.Loan
	title  model.Title
	member model.Member
}

type returned struct {
	result model.ReturnResult
	title  model.Title
}

// Borrow opens a loan and takes the copies off the shelf in one transaction.
func (s *Service) Borrow(ctx context.Context, req model.BorrowRequest) (_ model.Loan, err error) {
	defer func(begin time.Time) { s.observe("borrow", begin, err) }(time.Now())

	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return model.Loan{}, errors.Wrapf(errs.ErrInvalidArgument, "quantity %d", qty)
	}
	days := req.LoanDays
	if days <= 0 {
		days = s.cfg.LoanDays
	}

	now := s.clock()
	var b borrowed
	err = s.inTx(ctx, func(tx repository.Tx) error {
		title, err := tx.GetTitle(ctx, req.TitleID)
		if err != nil {
			return err
		}
		member, err := tx.GetMember(ctx, req.MemberID)
		if err != nil {
			return err
		}
		b, err = s.borrow(ctx, tx, title, member, qty, days, req.Notes, now)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}

	s.record(ctx, borrowEntry(b))
	return b.loan, nil
}

// BorrowByCode is the scan desk flow: one copy for the default loan period.
func (s *Service) BorrowByCode(ctx context.Context, req model.ScanBorrowRequest) (_ model.Loan, err error) {
	defer func(begin time.Time) { s.observe("borrow_by_code", begin, err) }(time.Now())

	now := s.clock()
	var b borrowed
	err = s.inTx(ctx, func(tx repository.Tx) error {
		title, err := tx.GetTitleByISBN(ctx, req.ISBN)
		if err != nil {
			return err
		}
		member, err := tx.GetMemberByCode(ctx, req.MemberCode)
		if err != nil {
			return err
		}
		b, err = s.borrow(ctx, tx, title, member, 1, s.cfg.LoanDays, nil, now)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}

	s.record(ctx, borrowEntry(b))
	return b.loan, nil
}

func (s *Service) borrow(ctx context.Context, tx repository.Tx, title model.Title, member model.Member,
	qty, days int, notes *string, now time.Time,
) (borrowed, error) {
	if member.Status != model.MemberActive {
		return borrowed{}, errors.Wrapf(errs.ErrMemberInactive, "member %d", member.ID)
	}

	open, err := tx.HasOpenLoan(ctx, title.ID, member.ID)
	if err != nil {
		return borrowed{}, err
	}
	if open {
		return borrowed{}, errors.Wrapf(errs.ErrDuplicateActiveLoan, "title %d member %d", title.ID, member.ID)
	}

	if s.cfg.MaxOpenLoans > 0 {
		n, err := tx.CountOpenLoansByMember(ctx, member.ID)
		if err != nil {
			return borrowed{}, err
		}
		if n >= s.cfg.MaxOpenLoans {
			return borrowed{}, errors.Wrapf(errs.ErrLoanLimitReached, "member %d has %d open loans", member.ID, n)
		}
	}

	if err := tx.DecrementAvailable(ctx, title.ID, qty, now); err != nil {
		return borrowed{}, err
	}

	loan := model.Loan{
		TitleID:  title.ID,
		MemberID: member.ID,
		Quantity: qty,
		LoanDate: now,
		DueDate:  now.AddDate(0, 0, days),
		Status:   model.LoanOpen,
		Notes:    notes,
	}
	id, err := tx.InsertLoan(ctx, loan)
	if err != nil {
		return borrowed{}, err
	}
	loan.ID = id
	title.AvailableCopies -= qty
	return borrowed{loan: loan, title: title, member: member}, nil
}

// ReturnLoan closes an open loan and freezes its fine. A return of fewer copies
// than borrowed still closes the whole loan; only the returned copies go back
// on the shelf.
func (s *Service) ReturnLoan(ctx context.Context, loanID int64, req model.ReturnRequest) (_ model.ReturnResult, err error) {
	defer func(begin time.Time) { s.observe("return", begin, err) }(time.Now())

	now := s.clock()
	var r returned
	err = s.inTx(ctx, func(tx repository.Tx) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		r, err = s.closeLoan(ctx, tx, loan, req.ReturnQuantity, req.Notes, now)
		return err
	})
	if err != nil {
		return model.ReturnResult{}, err
	}

	s.record(ctx, returnEntry(model.ActionReturn, r, ""))
	return r.result, nil
}

// ReturnByCode returns the oldest open loan of the scanned title, narrowed to
// the member when a member code is given.
func (s *Service) ReturnByCode(ctx context.Context, req model.ScanReturnRequest) (_ model.ReturnResult, err error) {
	defer func(begin time.Time) { s.observe("return_by_code", begin, err) }(time.Now())

	now := s.clock()
	var r returned
	err = s.inTx(ctx, func(tx repository.Tx) error {
		title, err := tx.GetTitleByISBN(ctx, req.ISBN)
		if err != nil {
			return err
		}
		var memberID int64
		if req.MemberCode != "" {
			member, err := tx.GetMemberByCode(ctx, req.MemberCode)
			if err != nil {
				return err
			}
			memberID = member.ID
		}
		loan, err := tx.OldestOpenLoan(ctx, title.ID, memberID)
		if err != nil {
			return err
		}
		r, err = s.closeLoan(ctx, tx, loan, 0, nil, now)
		return err
	})
	if err != nil {
		return model.ReturnResult{}, err
	}

	s.record(ctx, returnEntry(model.ActionReturn, r, ""))
	return r.result, nil
}

// returnQuantity defaults to the full loan and is clamped to [1, loan quantity].
func returnQuantity(requested, loanQty int) int {
	if requested <= 0 || requested > loanQty {
		return loanQty
	}
	return requested
}

func (s *Service) closeLoan(ctx context.Context, tx repository.Tx, loan model.Loan, requested int, notes *string, now time.Time) (returned, error) {
	if loan.Status != model.LoanOpen {
		return returned{}, errors.Wrapf(errs.ErrLoanClosed, "loan %d", loan.ID)
	}

	qty := returnQuantity(requested, loan.Quantity)
	fine := s.fines.Compute(loan.DueDate, now, qty)
	if err := tx.CloseLoan(ctx, loan.ID, now, fine, notes); err != nil {
		return returned{}, err
	}
	if err := tx.IncrementAvailable(ctx, loan.TitleID, qty, now); err != nil {
		return returned{}, err
	}
	title, err := tx.GetTitle(ctx, loan.TitleID)
	if err != nil {
		return returned{}, err
	}

	loan.Status = model.LoanClosed
	loan.ReturnDate = &now
	loan.Fine = fine
	if notes != nil {
		loan.Notes = notes
	}
	return returned{
		result: model.ReturnResult{Loan: loan, ReturnedQuantity: qty, Fine: fine},
		title:  title,
	}, nil
}

func (s *Service) ListLoans(ctx context.Context, filter model.LoanFilter) (_ model.ListLoans, err error) {
	defer func(begin time.Time) { s.observe("list_loans", begin, err) }(time.Now())

	filter.PageQuery = filter.PageQuery.Normalize()
	now := s.clock()
	items, total, err := s.repo.ListLoans(ctx, filter, now)
	if err != nil {
		return model.ListLoans{}, err
	}
	for i := range items {
		items[i].ComputedState = items[i].DisplayStatus(now)
		if items[i].Status == model.LoanOpen {
			items[i].AccruedFine = s.fines.Compute(items[i].DueDate, now, items[i].Quantity)
		} else {
			items[i].AccruedFine = items[i].Fine
		}
	}
	return model.ListLoans{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}

func borrowEntry(b borrowed) model.AuditEntry {
	details := fmt.Sprintf("member=%s qty=%d due=%s", b.member.MemberCode, b.loan.Quantity, b.loan.DueDate.Format(dateLayout))
	return model.AuditEntry{
		Action:     model.ActionCreate,
		EntityType: model.EntityLoan,
		EntityID:   strconv.FormatInt(b.loan.ID, 10),
		EntityName: b.title.Title,
		Details:    &details,
	}
}

func returnEntry(action model.AuditAction, r returned, batchID string) model.AuditEntry {
	details := fmt.Sprintf("returned=%d of %d fine=%d", r.result.ReturnedQuantity, r.result.Loan.Quantity, r.result.Fine)
	if batchID != "" {
		details += " batch=" + batchID
	}
	return model.AuditEntry{
		Action:     action,
		EntityType: model.EntityLoan,
		EntityID:   strconv.FormatInt(r.result.Loan.ID, 10),
		EntityName: r.title.Title,
		Details:    &details,
	}
}
