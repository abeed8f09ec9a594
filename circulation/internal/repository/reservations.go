package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

var reservationColumns = []string{"id", "title_id", "member_id", "reserved_at", "expires_at", "status"}

func (s *store) GetReservation(ctx context.Context, id int64) (model.Reservation, error) {
	b := s.forUpdate(s.qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"id": id}))

	var r model.Reservation
	if err := s.get(ctx, &r, b, "GetReservation"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errors.Wrapf(errs.ErrReservationNotFound, "reservation %d", id)
		}
		return model.Reservation{}, errors.Wrap(err, "GetReservation")
	}
	return r, nil
}

func (s *store) HasActiveReservation(ctx context.Context, titleID, memberID int64) (bool, error) {
	return s.exists(ctx, s.qb.Select("COUNT(*)").
		From(reservationsTableName).
		Where(sq.Eq{"title_id": titleID, "member_id": memberID, "status": model.ReservationActive}), "HasActiveReservation")
}

func (s *store) InsertReservation(ctx context.Context, r model.Reservation) (int64, error) {
	b := s.qb.Insert(reservationsTableName).
		Columns("title_id", "member_id", "reserved_at", "expires_at", "status").
		Values(r.TitleID, r.MemberID, r.ReservedAt, r.ExpiresAt, model.ReservationActive)
	return s.insert(ctx, b, "InsertReservation")
}

// SetReservationStatus moves an active reservation to status.
func (s *store) SetReservationStatus(ctx context.Context, id int64, status model.ReservationStatus) error {
	b := s.qb.Update(reservationsTableName).
		Set("status", status).
		Where(sq.Eq{"id": id, "status": model.ReservationActive})
	n, err := s.exec(ctx, b, "SetReservationStatus")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrReservationNotActive, "reservation %d", id)
	}
	return nil
}

func reservationFilter(b sq.SelectBuilder, f model.ReservationFilter) sq.SelectBuilder {
	if f.Status != "" {
		b = b.Where(sq.Eq{"r.status": f.Status})
	}
	if f.MemberID != 0 {
		b = b.Where(sq.Eq{"r.member_id": f.MemberID})
	}
	if f.TitleID != 0 {
		b = b.Where(sq.Eq{"r.title_id": f.TitleID})
	}
	return b
}

func (s *store) ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.ReservationView, int, error) {
	total, err := s.count(ctx, reservationFilter(s.qb.Select("COUNT(*)").From(reservationsTableName+" r"), f), "ListReservations.count")
	if err != nil {
		return nil, 0, err
	}

	b := s.qb.Select(
		"r.id", "r.title_id", "r.member_id", "r.reserved_at", "r.expires_at", "r.status",
		"t.title AS title_name", "m.name AS member_name", "m.member_code",
	).
		From(reservationsTableName + " r").
		Join(titlesTableName + " t ON t.id = r.title_id").
		Join(membersTableName + " m ON m.id = r.member_id").
		OrderBy("r.reserved_at DESC", "r.id DESC")
	b = page(reservationFilter(b, f), f.PageQuery)

	items := make([]model.ReservationView, 0)
	if err := s.selectAll(ctx, &items, b, "ListReservations"); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *store) CountActiveReservations(ctx context.Context) (int, error) {
	return s.count(ctx, s.qb.Select("COUNT(*)").
		From(reservationsTableName).
		Where(sq.Eq{"status": model.ReservationActive}), "CountActiveReservations")
}
