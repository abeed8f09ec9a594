package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/audit"
	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
	"github.com/smabibs/SiPerpus/circulation/internal/service"
	"github.com/smabibs/SiPerpus/circulation/migrations"
	"github.com/smabibs/SiPerpus/pkg/database"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type env struct {
	svc   *service.Service
	repo  repository.Repository
	clock *testClock
}

func newEnv(t *testing.T, cfg service.Config) *env {
	t.Helper()
	dbCfg := &database.DB{
		Driver:       string(database.SQLite),
		Path:         filepath.Join(t.TempDir(), "library.db"),
		BusyTimeout:  10 * time.Second,
		MaxOpenConns: 8,
	}
	db, err := database.NewDB(context.Background(), dbCfg, migrations.MigrationFiles)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zap.NewNop()
	clock := &testClock{t: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)}
	repo := repository.NewRepository(db, dbCfg.Dialect(), log)
	recorder := audit.NewRecorder(repo, log, audit.WithClock(clock.Now))
	svc := service.NewService(repo, recorder, log, cfg, service.WithClock(clock.Now))
	return &env{svc: svc, repo: repo, clock: clock}
}

func (e *env) title(t *testing.T, copies int) model.Title {
	t.Helper()
	title, err := e.svc.CreateTitle(context.Background(), model.CreateTitleRequest{Title: "Ronggeng Dukuh Paruk", TotalCopies: copies})
	require.NoError(t, err)
	return title
}

func (e *env) titleWithISBN(t *testing.T, isbn string, copies int) model.Title {
	t.Helper()
	title, err := e.svc.CreateTitle(context.Background(), model.CreateTitleRequest{ISBN: &isbn, Title: "Negeri 5 Menara", TotalCopies: copies})
	require.NoError(t, err)
	return title
}

func (e *env) member(t *testing.T, code string) model.Member {
	t.Helper()
	m, err := e.svc.CreateMember(context.Background(), model.CreateMemberRequest{MemberCode: code, Name: "Siswa " + code})
	require.NoError(t, err)
	return m
}

func (e *env) available(t *testing.T, titleID int64) int {
	t.Helper()
	title, err := e.repo.GetTitle(context.Background(), titleID)
	require.NoError(t, err)
	return title.AvailableCopies
}

func (e *env) openLoans(t *testing.T, titleID int64) int {
	t.Helper()
	n, err := e.repo.CountOpenLoansByTitle(context.Background(), titleID)
	require.NoError(t, err)
	return n
}

func TestCirculationScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 3)
	a, b, c := e.member(t, "A"), e.member(t, "B"), e.member(t, "C")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: a.ID, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, 1, e.available(t, title.ID))

	_, err = e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: b.ID})
	require.ErrorIs(t, err, errs.ErrTitleAvailable)
	require.Equal(t, errs.KindPrecondition, errs.KindOf(err))

	_, err = e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: b.ID, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, 0, e.available(t, title.ID))

	res, err := e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: c.ID})
	require.NoError(t, err)
	require.Equal(t, model.ReservationActive, res.Status)
	require.Equal(t, e.clock.Now().AddDate(0, 0, 7), res.ExpiresAt)

	_, err = e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: c.ID})
	require.ErrorIs(t, err, errs.ErrDuplicateReservation)
}

func TestBorrowPreconditions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 2)
	active := e.member(t, "ACT")
	inactive := e.member(t, "INA")
	_, err := e.svc.SetMemberStatus(ctx, inactive.ID, model.MemberInactive)
	require.NoError(t, err)

	_, err = e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: active.ID, Quantity: 1})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     model.BorrowRequest
		wantErr error
	}{
		{name: "unknown title", req: model.BorrowRequest{TitleID: 999, MemberID: active.ID}, wantErr: errs.ErrTitleNotFound},
		{name: "unknown member", req: model.BorrowRequest{TitleID: title.ID, MemberID: 999}, wantErr: errs.ErrMemberNotFound},
		{name: "inactive member", req: model.BorrowRequest{TitleID: title.ID, MemberID: inactive.ID}, wantErr: errs.ErrMemberInactive},
		{name: "duplicate open loan", req: model.BorrowRequest{TitleID: title.ID, MemberID: active.ID}, wantErr: errs.ErrDuplicateActiveLoan},
		{name: "negative quantity", req: model.BorrowRequest{TitleID: title.ID, MemberID: active.ID, Quantity: -1}, wantErr: errs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Borrow(ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 1, e.available(t, title.ID))
			require.Equal(t, 1, e.openLoans(t, title.ID))
		})
	}
}

func TestBorrowInsufficientStockIsAtomic(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 2)
	m := e.member(t, "M1")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 3})
	require.ErrorIs(t, err, errs.ErrInsufficientStock)
	require.Equal(t, errs.KindInsufficientStock, errs.KindOf(err))
	require.Equal(t, 2, e.available(t, title.ID))
	require.Equal(t, 0, e.openLoans(t, title.ID))
}

func TestBorrowLoanLimit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{MaxOpenLoans: 1})
	first, second := e.title(t, 1), e.title(t, 1)
	m := e.member(t, "M1")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: first.ID, MemberID: m.ID})
	require.NoError(t, err)
	_, err = e.svc.Borrow(ctx, model.BorrowRequest{TitleID: second.ID, MemberID: m.ID})
	require.ErrorIs(t, err, errs.ErrLoanLimitReached)
	require.Equal(t, 1, e.available(t, second.ID))
}

func TestReturnFreezesFine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 3)
	m := e.member(t, "M1")

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 2, LoanDays: 7})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), loan.DueDate)

	e.clock.Set(time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC))
	res, err := e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(6000), res.Fine)
	require.Equal(t, 2, res.ReturnedQuantity)
	require.Equal(t, model.LoanClosed, res.Loan.Status)
	require.Equal(t, 3, e.available(t, title.ID))

	e.clock.Set(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	stored, err := e.repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6000), stored.Fine)

	_, err = e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{})
	require.ErrorIs(t, err, errs.ErrLoanClosed)
	require.Equal(t, 3, e.available(t, title.ID))
}

func TestReturnOnTimeHasNoFine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 1)
	m := e.member(t, "M1")

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID})
	require.NoError(t, err)

	e.clock.Set(loan.DueDate)
	res, err := e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{})
	require.NoError(t, err)
	require.Zero(t, res.Fine)
}

func TestPartialReturnClosesWholeLoan(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 5)
	m := e.member(t, "M1")

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, e.available(t, title.ID))

	notes := "two copies still at home"
	res, err := e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{ReturnQuantity: 1, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, 1, res.ReturnedQuantity)
	require.Equal(t, model.LoanClosed, res.Loan.Status)
	require.Equal(t, 3, e.available(t, title.ID))
	require.Equal(t, 0, e.openLoans(t, title.ID))

	stored, err := e.repo.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, notes, *stored.Notes)
}

func TestReturnQuantityIsClamped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 4)
	m := e.member(t, "M1")

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 2})
	require.NoError(t, err)

	res, err := e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{ReturnQuantity: 10})
	require.NoError(t, err)
	require.Equal(t, 2, res.ReturnedQuantity)
	require.Equal(t, 4, e.available(t, title.ID))
}

func TestConcurrentBorrowOfLastCopy(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 1)

	const workers = 8
	members := make([]model.Member, workers)
	for i := range members {
		members[i] = e.member(t, fmt.Sprintf("C%02d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		results []error
	)
	for _, m := range members {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: memberID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			results = append(results, err)
		}(m.ID)
	}
	wg.Wait()

	require.Equal(t, 1, success)
	for _, err := range results {
		kind := errs.KindOf(err)
		require.Truef(t, kind == errs.KindInsufficientStock || kind == errs.KindConflict, "unexpected error: %v", err)
	}
	require.Equal(t, 0, e.available(t, title.ID))
	require.Equal(t, 1, e.openLoans(t, title.ID))
}

func TestScanDesk(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{LoanDays: 14})
	title := e.titleWithISBN(t, "978-979-22-3494-4", 2)
	m1, m2 := e.member(t, "S-01"), e.member(t, "S-02")

	first, err := e.svc.BorrowByCode(ctx, model.ScanBorrowRequest{ISBN: "978-979-22-3494-4", MemberCode: "S-01"})
	require.NoError(t, err)
	require.Equal(t, 1, first.Quantity)
	require.Equal(t, e.clock.Now().AddDate(0, 0, 14), first.DueDate)
	require.Equal(t, m1.ID, first.MemberID)

	e.clock.Set(e.clock.Now().Add(time.Hour))
	_, err = e.svc.BorrowByCode(ctx, model.ScanBorrowRequest{ISBN: "978-979-22-3494-4", MemberCode: "S-02"})
	require.NoError(t, err)

	_, err = e.svc.BorrowByCode(ctx, model.ScanBorrowRequest{ISBN: "000", MemberCode: "S-01"})
	require.ErrorIs(t, err, errs.ErrTitleNotFound)

	_, err = e.svc.ReturnByCode(ctx, model.ScanReturnRequest{ISBN: "978-979-22-3494-4", MemberCode: "S-99"})
	require.ErrorIs(t, err, errs.ErrMemberNotFound)
	require.Equal(t, 0, e.available(t, title.ID))

	res, err := e.svc.ReturnByCode(ctx, model.ScanReturnRequest{ISBN: "978-979-22-3494-4", MemberCode: "S-02"})
	require.NoError(t, err)
	require.Equal(t, m2.ID, res.Loan.MemberID)

	res, err = e.svc.ReturnByCode(ctx, model.ScanReturnRequest{ISBN: "978-979-22-3494-4"})
	require.NoError(t, err)
	require.Equal(t, first.ID, res.Loan.ID)

	_, err = e.svc.ReturnByCode(ctx, model.ScanReturnRequest{ISBN: "978-979-22-3494-4"})
	require.ErrorIs(t, err, errs.ErrLoanNotFound)
	require.Equal(t, 2, e.available(t, title.ID))
}

func TestReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 1)
	a, b := e.member(t, "A"), e.member(t, "B")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: a.ID})
	require.NoError(t, err)
	res, err := e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: b.ID})
	require.NoError(t, err)

	_, err = e.svc.ChangeReservationStatus(ctx, res.ID, model.ReservationActive)
	require.ErrorIs(t, err, errs.ErrInvalidStatusChange)

	got, err := e.svc.ChangeReservationStatus(ctx, res.ID, model.ReservationFulfilled)
	require.NoError(t, err)
	require.Equal(t, model.ReservationFulfilled, got.Status)
	require.Equal(t, 0, e.available(t, title.ID))

	_, err = e.svc.CancelReservation(ctx, res.ID)
	require.ErrorIs(t, err, errs.ErrReservationNotActive)

	_, err = e.svc.CancelReservation(ctx, 999)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)

	again, err := e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: b.ID})
	require.NoError(t, err)
	require.NotEqual(t, res.ID, again.ID)
}

func TestReserveRequiresActiveMember(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 1)
	a, b := e.member(t, "A"), e.member(t, "B")
	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: a.ID})
	require.NoError(t, err)
	_, err = e.svc.SetMemberStatus(ctx, b.ID, model.MemberInactive)
	require.NoError(t, err)

	_, err = e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: b.ID})
	require.ErrorIs(t, err, errs.ErrMemberInactive)
}

func TestListReservationsDerivesExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{ReservationDays: 2})
	title := e.title(t, 1)
	a, b := e.member(t, "A"), e.member(t, "B")
	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: a.ID})
	require.NoError(t, err)
	_, err = e.svc.Reserve(ctx, model.ReserveRequest{TitleID: title.ID, MemberID: b.ID})
	require.NoError(t, err)

	list, err := e.svc.ListReservations(ctx, model.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.False(t, list.Items[0].Expired)

	e.clock.Set(e.clock.Now().AddDate(0, 0, 3))
	list, err = e.svc.ListReservations(ctx, model.ReservationFilter{Status: model.ReservationActive})
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalElements)
	require.True(t, list.Items[0].Expired)
	require.Equal(t, model.ReservationActive, list.Items[0].Status)
}

func TestListLoansDerivesOverdue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 2)
	m := e.member(t, "M1")

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 2, LoanDays: 1})
	require.NoError(t, err)

	list, err := e.svc.ListLoans(ctx, model.LoanFilter{Status: model.LoanOverdue})
	require.NoError(t, err)
	require.Empty(t, list.Items)

	e.clock.Set(loan.DueDate.Add(36 * time.Hour))
	list, err = e.svc.ListLoans(ctx, model.LoanFilter{Status: model.LoanOverdue})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, model.LoanOverdue, list.Items[0].ComputedState)
	require.Equal(t, model.LoanOpen, list.Items[0].Status)
	require.Equal(t, int64(2*1000*2), list.Items[0].AccruedFine)
	require.Equal(t, 1, list.Page)
	require.Equal(t, 20, list.PageSize)
}

func TestBulkDeleteTitlesSkipsOnLoan(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	a, b := e.title(t, 1), e.title(t, 1)
	m := e.member(t, "M1")
	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: a.ID, MemberID: m.ID})
	require.NoError(t, err)

	res, err := e.svc.Bulk(ctx, model.BulkRequest{Action: model.BulkDeleteTitles, IDs: []int64{a.ID, b.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)
	require.Equal(t, []int64{a.ID}, res.SkippedIDs)
	require.NotEmpty(t, res.BatchID)

	_, err = e.repo.GetTitle(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.repo.GetTitle(ctx, b.ID)
	require.ErrorIs(t, err, errs.ErrTitleNotFound)

	audit, err := e.svc.ListAudit(ctx, model.AuditFilter{Action: model.ActionBulkDelete})
	require.NoError(t, err)
	require.Equal(t, 1, audit.TotalElements)
	require.Contains(t, *audit.Items[0].Details, res.BatchID)
}

func TestBulkReturnLoans(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 3)
	m1, m2 := e.member(t, "M1"), e.member(t, "M2")

	l1, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m1.ID, Quantity: 2})
	require.NoError(t, err)
	l2, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m2.ID})
	require.NoError(t, err)
	_, err = e.svc.ReturnLoan(ctx, l2.ID, model.ReturnRequest{})
	require.NoError(t, err)

	res, err := e.svc.Bulk(ctx, model.BulkRequest{Action: model.BulkReturnLoans, IDs: []int64{l1.ID, l2.ID, 999, l1.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)
	require.Equal(t, []int64{l2.ID, 999, l1.ID}, res.SkippedIDs)
	require.Equal(t, 3, e.available(t, title.ID))
}

func TestBulkDeleteMembers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 2)
	busy, idle := e.member(t, "BUSY"), e.member(t, "IDLE")
	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: idle.ID})
	require.NoError(t, err)
	_, err = e.svc.ReturnLoan(ctx, loan.ID, model.ReturnRequest{})
	require.NoError(t, err)
	_, err = e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: busy.ID})
	require.NoError(t, err)

	res, err := e.svc.Bulk(ctx, model.BulkRequest{Action: model.BulkDeleteMembers, IDs: []int64{busy.ID, idle.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Affected)
	require.Equal(t, []int64{busy.ID}, res.SkippedIDs)

	_, err = e.repo.GetMember(ctx, idle.ID)
	require.ErrorIs(t, err, errs.ErrMemberNotFound)
	_, err = e.repo.GetLoan(ctx, loan.ID)
	require.ErrorIs(t, err, errs.ErrLoanNotFound)
}

func TestBulkRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})

	_, err := e.svc.Bulk(ctx, model.BulkRequest{Action: model.BulkDeleteTitles})
	require.ErrorIs(t, err, errs.ErrEmptyBatch)

	_, err = e.svc.Bulk(ctx, model.BulkRequest{Action: "burn_books", IDs: []int64{1}})
	require.ErrorIs(t, err, errs.ErrUnknownBulkAction)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCatalogMaintenance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 5)
	m := e.member(t, "M1")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 4})
	require.NoError(t, err)

	resized, err := e.svc.ResizeTitle(ctx, title.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, resized.TotalCopies)
	require.Equal(t, 0, resized.AvailableCopies)

	_, err = e.svc.ResizeTitle(ctx, title.ID, 0)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	require.ErrorIs(t, e.svc.DeleteTitle(ctx, title.ID), errs.ErrTitleOnLoan)
	require.ErrorIs(t, e.svc.DeleteMember(ctx, m.ID), errs.ErrMemberOnLoan)
	require.ErrorIs(t, e.svc.DeleteTitle(ctx, 999), errs.ErrTitleNotFound)

	_, err = e.svc.CreateMember(ctx, model.CreateMemberRequest{MemberCode: "M1", Name: "Dup"})
	require.ErrorIs(t, err, errs.ErrDuplicateMemberCode)

	got, err := e.svc.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	require.Equal(t, resized.AvailableCopies, got.AvailableCopies)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	t1, t2 := e.title(t, 3), e.title(t, 1)
	a, b := e.member(t, "A"), e.member(t, "B")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: t1.ID, MemberID: a.ID, Quantity: 2, LoanDays: 1})
	require.NoError(t, err)
	late, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: t2.ID, MemberID: a.ID, LoanDays: 1})
	require.NoError(t, err)
	_, err = e.svc.Reserve(ctx, model.ReserveRequest{TitleID: t2.ID, MemberID: b.ID})
	require.NoError(t, err)

	e.clock.Set(late.DueDate.Add(24 * time.Hour))
	_, err = e.svc.ReturnLoan(ctx, late.ID, model.ReturnRequest{})
	require.NoError(t, err)

	stats, err := e.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Stats{
		Titles:             2,
		TotalCopies:        4,
		AvailableCopies:    2,
		BorrowedCopies:     2,
		ActiveMembers:      2,
		OpenLoans:          1,
		OverdueLoans:       1,
		FinesCollected:     1000,
		ActiveReservations: 1,
	}, stats)
}

func TestAuditOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, service.Config{})
	title := e.title(t, 1)
	m := e.member(t, "M1")

	_, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID, Quantity: 2})
	require.Error(t, err)
	loans, err := e.svc.ListAudit(ctx, model.AuditFilter{EntityType: model.EntityLoan})
	require.NoError(t, err)
	require.Zero(t, loans.TotalElements)

	loan, err := e.svc.Borrow(ctx, model.BorrowRequest{TitleID: title.ID, MemberID: m.ID})
	require.NoError(t, err)
	loans, err = e.svc.ListAudit(ctx, model.AuditFilter{EntityType: model.EntityLoan})
	require.NoError(t, err)
	require.Equal(t, 1, loans.TotalElements)
	require.Equal(t, model.ActionCreate, loans.Items[0].Action)
	require.Equal(t, fmt.Sprint(loan.ID), loans.Items[0].EntityID)
	require.Equal(t, title.Title, loans.Items[0].EntityName)
}
