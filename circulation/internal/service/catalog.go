package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
)

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) CreateTitle(ctx context.Context, req model.CreateTitleRequest) (_ model.Title, err error) {
	defer func(begin time.Time) { s.observe("create_title", begin, err) }(time.Now())

	if strings.TrimSpace(req.Title) == "" {
		return model.Title{}, errors.Wrap(errs.ErrInvalidArgument, "title is required")
	}
	total := req.TotalCopies
	if total == 0 {
		total = 1
	}
	if total < 0 {
		return model.Title{}, errors.Wrapf(errs.ErrInvalidArgument, "total copies %d", total)
	}

	now := s.clock()
	title := model.Title{
		ISBN:            nonEmpty(req.ISBN),
		Title:           strings.TrimSpace(req.Title),
		Author:          nonEmpty(req.Author),
		TotalCopies:     total,
		AvailableCopies: total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	title.ID, err = s.repo.CreateTitle(ctx, title)
	if err != nil {
		return model.Title{}, err
	}

	details := fmt.Sprintf("copies=%d", total)
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionCreate,
		EntityType: model.EntityTitle,
		EntityID:   strconv.FormatInt(title.ID, 10),
		EntityName: title.Title,
		Details:    &details,
	})
	return title, nil
}

func (s *Service) GetTitle(ctx context.Context, id int64) (model.Title, error) {
	return s.repo.GetTitle(ctx, id)
}

// ResizeTitle changes the number of owned copies through the inventory ledger.
func (s *Service) ResizeTitle(ctx context.Context, id int64, totalCopies int) (_ model.Title, err error) {
	defer func(begin time.Time) { s.observe("resize_title", begin, err) }(time.Now())

	if totalCopies < 1 {
		return model.Title{}, errors.Wrapf(errs.ErrInvalidArgument, "total copies %d", totalCopies)
	}

	now := s.clock()
	var before, after model.Title
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		if before, err = tx.GetTitle(ctx, id); err != nil {
			return err
		}
		after, err = tx.ResizeTitle(ctx, id, totalCopies, now)
		return err
	})
	if err != nil {
		return model.Title{}, err
	}

	details := fmt.Sprintf("copies=%d->%d available=%d->%d",
		before.TotalCopies, after.TotalCopies, before.AvailableCopies, after.AvailableCopies)
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionUpdate,
		EntityType: model.EntityTitle,
		EntityID:   strconv.FormatInt(id, 10),
		EntityName: after.Title,
		Details:    &details,
	})
	return after, nil
}

func (s *Service) DeleteTitle(ctx context.Context, id int64) (err error) {
	defer func(begin time.Time) { s.observe("delete_title", begin, err) }(time.Now())

	var title model.Title
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		title, err = s.deleteTitle(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, titleDeleted(model.ActionDelete, title, ""))
	return nil
}

// deleteTitle refuses while copies are out; closed history goes with the title.
func (s *Service) deleteTitle(ctx context.Context, tx repository.Tx, id int64) (model.Title, error) {
	title, err := tx.GetTitle(ctx, id)
	if err != nil {
		return model.Title{}, err
	}
	open, err := tx.CountOpenLoansByTitle(ctx, id)
	if err != nil {
		return model.Title{}, err
	}
	if open > 0 {
		return model.Title{}, errors.Wrapf(errs.ErrTitleOnLoan, "title %d has %d open loans", id, open)
	}
	if err := tx.DeleteTitle(ctx, id); err != nil {
		return model.Title{}, err
	}
	return title, nil
}

func (s *Service) CreateMember(ctx context.Context, req model.CreateMemberRequest) (_ model.Member, err error) {
	defer func(begin time.Time) { s.observe("create_member", begin, err) }(time.Now())

	code := strings.TrimSpace(req.MemberCode)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return model.Member{}, errors.Wrap(errs.ErrInvalidArgument, "member code and name are required")
	}
	status := req.Status
	if status == "" {
		status = model.MemberActive
	}
	if !status.Valid() {
		return model.Member{}, errors.Wrapf(errs.ErrInvalidArgument, "status %q", status)
	}

	member := model.Member{
		MemberCode: code,
		Name:       name,
		Status:     status,
		CreatedAt:  s.clock(),
	}
	member.ID, err = s.repo.CreateMember(ctx, member)
	if err != nil {
		return model.Member{}, err
	}

	details := "code=" + member.MemberCode
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionCreate,
		EntityType: model.EntityMember,
		EntityID:   strconv.FormatInt(member.ID, 10),
		EntityName: member.Name,
		Details:    &details,
	})
	return member, nil
}

func (s *Service) GetMember(ctx context.Context, id int64) (model.Member, error) {
	return s.repo.GetMember(ctx, id)
}

func (s *Service) SetMemberStatus(ctx context.Context, id int64, status model.MemberStatus) (_ model.Member, err error) {
	defer func(begin time.Time) { s.observe("member_status", begin, err) }(time.Now())

	if !status.Valid() {
		return model.Member{}, errors.Wrapf(errs.ErrInvalidArgument, "status %q", status)
	}

	var member model.Member
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		if member, err = tx.GetMember(ctx, id); err != nil {
			return err
		}
		if err := tx.SetMemberStatus(ctx, id, status); err != nil {
			return err
		}
		member.Status = status
		return nil
	})
	if err != nil {
		return model.Member{}, err
	}

	details := "status=" + string(status)
	s.record(ctx, model.AuditEntry{
		Action:     model.ActionUpdate,
		EntityType: model.EntityMember,
		EntityID:   strconv.FormatInt(id, 10),
		EntityName: member.Name,
		Details:    &details,
	})
	return member, nil
}

func (s *Service) DeleteMember(ctx context.Context, id int64) (err error) {
	defer func(begin time.Time) { s.observe("delete_member", begin, err) }(time.Now())

	var member model.Member
	err = s.inTx(ctx, func(tx repository.Tx) error {
		var err error
		member, err = s.deleteMember(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, memberDeleted(model.ActionDelete, member, ""))
	return nil
}

func (s *Service) deleteMember(ctx context.Context, tx repository.Tx, id int64) (model.Member, error) {
	member, err := tx.GetMember(ctx, id)
	if err != nil {
		return model.Member{}, err
	}
	open, err := tx.CountOpenLoansByMember(ctx, id)
	if err != nil {
		return model.Member{}, err
	}
	if open > 0 {
		return model.Member{}, errors.Wrapf(errs.ErrMemberOnLoan, "member %d has %d open loans", id, open)
	}
	if err := tx.DeleteMember(ctx, id); err != nil {
		return model.Member{}, err
	}
	return member, nil
}

func titleDeleted(action model.AuditAction, t model.Title, batchID string) model.AuditEntry {
	e := model.AuditEntry{
		Action:     action,
		EntityType: model.EntityTitle,
		EntityID:   strconv.FormatInt(t.ID, 10),
		EntityName: t.Title,
	}
	if batchID != "" {
		details := "batch=" + batchID
		e.Details = &details
	}
	return e
}

func memberDeleted(action model.AuditAction, m model.Member, batchID string) model.AuditEntry {
	e := model.AuditEntry{
		Action:     action,
		EntityType: model.EntityMember,
		EntityID:   strconv.FormatInt(m.ID, 10),
		EntityName: m.Name,
	}
	if batchID != "" {
		details := "batch=" + batchID
		e.Details = &details
	}
	return e
}
