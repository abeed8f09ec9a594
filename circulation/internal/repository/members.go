package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

var memberColumns = []string{"id", "member_code", "name", "status", "created_at"}

func (s *store) GetMember(ctx context.Context, id int64) (model.Member, error) {
	b := s.forUpdate(s.qb.Select(memberColumns...).
		From(membersTableName).
		Where(sq.Eq{"id": id}))

	var member model.Member
	if err := s.get(ctx, &member, b, "GetMember"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errors.Wrapf(errs.ErrMemberNotFound, "member %d", id)
		}
		return model.Member{}, errors.Wrap(err, "GetMember")
	}
	return member, nil
}

func (s *store) GetMemberByCode(ctx context.Context, code string) (model.Member, error) {
	b := s.forUpdate(s.qb.Select(memberColumns...).
		From(membersTableName).
		Where(sq.Eq{"member_code": code}))

	var member model.Member
	if err := s.get(ctx, &member, b, "GetMemberByCode"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errors.Wrapf(errs.ErrMemberNotFound, "member code %q", code)
		}
		return model.Member{}, errors.Wrap(err, "GetMemberByCode")
	}
	return member, nil
}

func (s *store) CreateMember(ctx context.Context, m model.Member) (int64, error) {
	b := s.qb.Insert(membersTableName).
		Columns("member_code", "name", "status", "created_at").
		Values(m.MemberCode, m.Name, m.Status, m.CreatedAt)
	return s.insert(ctx, b, "CreateMember")
}

func (s *store) SetMemberStatus(ctx context.Context, id int64, status model.MemberStatus) error {
	b := s.qb.Update(membersTableName).
		Set("status", status).
		Where(sq.Eq{"id": id})
	n, err := s.exec(ctx, b, "SetMemberStatus")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrMemberNotFound, "member %d", id)
	}
	return nil
}

// DeleteMember removes the member with their reservations and closed loan history.
func (s *store) DeleteMember(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, s.qb.Delete(reservationsTableName).Where(sq.Eq{"member_id": id}), "DeleteMember.reservations"); err != nil {
		return err
	}
	closed := s.qb.Delete(loansTableName).
		Where(sq.Eq{"member_id": id}).
		Where(sq.Eq{"status": model.LoanClosed})
	if _, err := s.exec(ctx, closed, "DeleteMember.loans"); err != nil {
		return err
	}

	n, err := s.exec(ctx, s.qb.Delete(membersTableName).Where(sq.Eq{"id": id}), "DeleteMember")
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrMemberNotFound, "member %d", id)
	}
	return nil
}

func (s *store) CountActiveMembers(ctx context.Context) (int, error) {
	return s.count(ctx, s.qb.Select("COUNT(*)").
		From(membersTableName).
		Where(sq.Eq{"status": model.MemberActive}), "CountActiveMembers")
}
