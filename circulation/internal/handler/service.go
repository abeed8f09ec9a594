package handler

import (
	"context"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CirculationService interface {
	Borrow(ctx context.Context, req model.BorrowRequest) (model.Loan, error)
	ReturnLoan(ctx context.Context, loanID int64, req model.ReturnRequest) (model.ReturnResult, error)
	BorrowByCode(ctx context.Context, req model.ScanBorrowRequest) (model.Loan, error)
	ReturnByCode(ctx context.Context, req model.ScanReturnRequest) (model.ReturnResult, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) (model.ListLoans, error)

	Reserve(ctx context.Context, req model.ReserveRequest) (model.Reservation, error)
	ChangeReservationStatus(ctx context.Context, id int64, status model.ReservationStatus) (model.Reservation, error)
	CancelReservation(ctx context.Context, id int64) (model.Reservation, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) (model.ListReservations, error)

	Bulk(ctx context.Context, req model.BulkRequest) (model.BulkResult, error)
	ListAudit(ctx context.Context, filter model.AuditFilter) (model.ListAudit, error)
	Stats(ctx context.Context) (model.Stats, error)
}

type CatalogService interface {
	CreateTitle(ctx context.Context, req model.CreateTitleRequest) (model.Title, error)
	GetTitle(ctx context.Context, id int64) (model.Title, error)
	ResizeTitle(ctx context.Context, id int64, totalCopies int) (model.Title, error)
	DeleteTitle(ctx context.Context, id int64) error
	CreateMember(ctx context.Context, req model.CreateMemberRequest) (model.Member, error)
	GetMember(ctx context.Context, id int64) (model.Member, error)
	SetMemberStatus(ctx context.Context, id int64, status model.MemberStatus) (model.Member, error)
	DeleteMember(ctx context.Context, id int64) error
}

var (
	_ CirculationService = (*service.Service)(nil)
	_ CatalogService     = (*service.Service)(nil)
)
