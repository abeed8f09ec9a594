package service_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
	"github.com/smabibs/SiPerpus/circulation/internal/service"
)

// brokenLoanRepo hands out transactions whose GetLoan fails for one loan id.
type brokenLoanRepo struct {
	repository.Repository
	loanID int64
}

func (r brokenLoanRepo) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return r.Repository.InTx(ctx, func(tx repository.Tx) error {
		return fn(brokenLoanTx{Tx: tx, loanID: r.loanID})
	})
}

type brokenLoanTx struct {
	repository.Tx
	loanID int64
}

func (t brokenLoanTx) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	if id == t.loanID {
		return model.Loan{}, errors.New("disk I/O error")
	}
	return t.Tx.GetLoan(ctx, id)
}

// busyRepo reports a write conflict for the first n transactions.
type busyRepo struct {
	repository.Repository
	n     int
	calls int
}

func (r *busyRepo) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	r.calls++
	if r.calls <= r.n {
		return errors.Wrap(errs.ErrConflict, "begin tx: database is locked")
	}
	return r.Repository.InTx(ctx, fn)
}

func TestBulkAbortsOnInternalError(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 3)
	m1, m2 := e.member(t, "M1"), e.member(t, "M2")

	l1, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m1.ID})
	require.NoError(t, err)
	l2, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m2.ID})
	require.NoError(t, err)

	svc := service.NewService(brokenLoanRepo{Repository: e.repo, loanID: l2.ID}, nil, zap.NewNop(), service.Config{},
		service.WithClock(e.clock.Now))
	_, err = svc.Bulk(ctx, model.BulkRequest{Action: model.BulkReturnLoans, IDs: []int64{l1.ID, l2.ID}})
	require.Error(t, err)
	require.Equal(t, errs.KindInternal, errs.KindOf(err))

	require.Equal(t, 1, e.available(t, title.ID))
	require.Equal(t, 2, e.openLoans(t, title.ID))
	loan, err := e.repo.GetLoan(ctx, l1.ID)
	require.NoError(t, err)
	require.Equal(t, model.LoanOpen, loan.Status)
}

func TestConflictIsRetriedOnce(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		conflicts int
		wantKind  errs.Kind
		available int
	}{
		{name: "one conflict", conflicts: 1, available: 1},
		{name: "two conflicts", conflicts: 2, wantKind: errs.KindConflict, available: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, service.Config{})
			title := e.title(t, 2)
			member := e.member(t, "R1")

			repo := &busyRepo{Repository: e.repo, n: tt.conflicts}
			svc := service.NewService(repo, nil, zap.NewNop(), service.Config{}, service.WithClock(e.clock.Now))

			_, err := svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: member.ID})
			require.Equal(t, tt.wantKind, errs.KindOf(err))
			if tt.wantKind == "" {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, errs.ErrConflict)
			}
			require.Equal(t, 2, repo.calls)
			require.Equal(t, tt.available, e.available(t, title.ID))
		})
	}
}
