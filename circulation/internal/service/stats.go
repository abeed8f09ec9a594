package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

// Stats gathers the dashboard counters. The queries are independent reads and run concurrently.
func (s *Service) Stats(ctx context.Context) (_ model.Stats, err error) {
	defer func(begin time.Time) { s.observe("stats", begin, err) }(time.Now())

	now := s.clock()
	var (
		inventory    model.InventoryTotals
		loans        model.LoanTotals
		members      int
		reservations int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inventory, err = s.repo.InventoryTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		loans, err = s.repo.LoanTotals(gctx, now)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.repo.CountActiveMembers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		reservations, err = s.repo.CountActiveReservations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	return model.Stats{
		Titles:             inventory.Titles,
		TotalCopies:        inventory.TotalCopies,
		AvailableCopies:    inventory.AvailableCopies,
		BorrowedCopies:     inventory.TotalCopies - inventory.AvailableCopies,
		ActiveMembers:      members,
		OpenLoans:          loans.Open,
		OverdueLoans:       loans.Overdue,
		FinesCollected:     loans.FinesCollected,
		ActiveReservations: reservations,
	}, nil
}

func (s *Service) ListAudit(ctx context.Context, filter model.AuditFilter) (_ model.ListAudit, err error) {
	defer func(begin time.Time) { s.observe("list_audit", begin, err) }(time.Now())

	filter.PageQuery = filter.PageQuery.Normalize()
	items, total, err := s.repo.ListAudit(ctx, filter)
	if err != nil {
		return model.ListAudit{}, err
	}
	return model.ListAudit{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}
