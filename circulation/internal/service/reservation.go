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

// Reserve queues a member for a title that has no copies on the shelf.
func (s *Service) Reserve(ctx context.Context, req model.ReserveRequest) (_ model.Reservation, err error) {
	defer func(begin time.Time) { s.observe("reserve", begin, err) }(time.Now())

	now := s.clock()
	var (
		res    model.Reservation
		title  model.Title
		member model.Member
	)
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		if title, err = tx.GetTitle(ctx, req.TitleID); err != nil {
			return err
		}
		if member, err = tx.GetMember(ctx, req.MemberID); err != nil {
			return err
		}
		if member.Status != model.MemberActive {
			return errors.Wrapf(errs.ErrMemberInactive, "member %d", member.ID)
		}
		if title.AvailableCopies > 0 {
			return errors.Wrapf(errs.ErrTitleAvailable, "title %d has %d copies available", title.ID, title.AvailableCopies)
		}
		active, err := tx.HasActiveReservation(ctx, title.ID, member.ID)
		if err != nil {
			return err
		}
		if active {
			return errors.Wrapf(errs.ErrDuplicateReservation, "title %d member %d", title.ID, member.ID)
		}

		res = model.Reservation{
			TitleID:    title.ID,
			MemberID:   member.ID,
			ReservedAt: now,
			ExpiresAt:  now.AddDate(0, 0, s.cfg.ReservationDays),
			Status:     model.ReservationActive,
		}
		res.ID, err = tx.InsertReservation(ctx, res)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}

	details := fmt.Sprintf("member=%s expires=%s", member.MemberCode, res.ExpiresAt.Format(dateLayout))
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionCreate,
		EntityType: model.EntityReservation,
		EntityID:   strconv.FormatInt(res.ID, 10),
		EntityName: title.Title,
		Details:    &details,
	})
	return res, nil
}

// ChangeReservationStatus moves an active reservation to fulfilled or cancelled.
// Inventory is not touched: fulfilling is followed by a regular borrow.
func (s *Service) ChangeReservationStatus(ctx context.Context, id int64, status model.ReservationStatus) (_ model.Reservation, err error) {
	defer func(begin time.Time) { s.observe("reservation_status", begin, err) }(time.Now())

	if status != model.ReservationFulfilled && status != model.ReservationCancelled {
		return model.Reservation{}, errors.Wrapf(errs.ErrInvalidStatusChange, "status %q", status)
	}

	var (
		res   model.Reservation
		title model.Title
	)
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		if res, err = tx.GetReservation(ctx, id); err != nil {
			return err
		}
		if res.Status != model.ReservationActive {
			return errors.Wrapf(errs.ErrReservationNotActive, "reservation %d is %s", id, res.Status)
		}
		if err := tx.SetReservationStatus(ctx, id, status); err != nil {
			return err
		}
		res.Status = status
		title, err = tx.GetTitle(ctx, res.TitleID)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}

	details := "status=" + string(status)
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionUpdate,
		EntityType: model.EntityReservation,
		EntityID:   strconv.FormatInt(res.ID, 10),
		EntityName: title.Title,
		Details:    &details,
	})
	return res, nil
}

func (s *Service) CancelReservation(ctx context.Context, id int64) (model.Reservation, error) {
	return s.ChangeReservationStatus(ctx, id, model.ReservationCancelled)
}

func (s *Service) ListReservations(ctx context.Context, filter model.ReservationFilter) (_ model.ListReservations, err error) {
	defer func(begin time.Time) { s.observe("list_reservations", begin, err) }(time.Now())

	filter.PageQuery = filter.PageQuery.Normalize()
	now := s.clock()
	items, total, err := s.repo.ListReservations(ctx, filter)
	if err != nil {
		return model.ListReservations{}, err
	}
	for i := range items {
		items[i].Expired = items[i].Lapsed(now)
	}
	return model.ListReservations{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: total,
		},
		Items: items,
	}, nil
}
