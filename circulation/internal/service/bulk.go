package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
)

// Bulk applies one action to every id inside a single transaction. Each item
// runs in its own savepoint: items failing with a skippable kind are rolled
// back alone and reported in SkippedIDs, any other failure aborts the batch.
// A repeated id is skipped because its second application finds the entity
// already gone or closed.
func (s *Service) Bulk(ctx context.Context, req model.BulkRequest) (_ model.BulkResult, err error) {
	defer func(begin time.Time) { s.observe("bulk_"+string(req.Action), begin, err) }(time.Now())

	if len(req.IDs) == 0 {
		return model.BulkResult{}, errs.ErrEmptyBatch
	}
	switch req.Action {
	case model.BulkDeleteTitles, model.BulkDeleteMembers, model.BulkReturnLoans:
	default:
		return model.BulkResult{}, errors.Wrapf(errs.ErrUnknownBulkAction, "action %q", req.Action)
	}

	batchID := uuid.NewString()
	now := s.clock()
	var (
		result  model.BulkResult
		entries []model.AuditEntry
	)
	err = s.inTx(ctx, func(tx repository.Tx) error {
		result = model.BulkResult{BatchID: batchID, SkippedIDs: []int64{}}
		entries = entries[:0]

		for _, id := range req.IDs {
			var entry model.AuditEntry
			itemErr := tx.Savepoint(ctx, func() error {
				var err error
				entry, err = s.bulkItem(ctx, tx, req.Action, id, batchID, now)
				return err
			})
			if itemErr == nil {
				result.Affected++
				entries = append(entries, entry)
				continue
			}
			if !errs.MetadataFor(errs.KindOf(itemErr)).Skippable {
				return itemErr
			}
			s.log.Debug("bulk item skipped",
				zap.String("batch", batchID),
				zap.Int64("id", id),
				zap.Error(itemErr))
			result.SkippedIDs = append(result.SkippedIDs, id)
		}
		return nil
	})
	if err != nil {
		return model.BulkResult{}, err
	}

	s.metrics.AddBulkSkipped(string(req.Action), len(result.SkippedIDs))
	s.record(ctx, entries...)
	return result, nil
}

func (s *Service) bulkItem(ctx context.Context, tx repository.Tx, action model.BulkAction, id int64, batchID string, now time.Time) (model.AuditEntry, error) {
	switch action {
	case model.BulkDeleteTitles:
		title, err := s.deleteTitle(ctx, tx, id)
		if err != nil {
			return model.AuditEntry{}, err
		}
		return titleDeleted(model.ActionBulkDelete, title, batchID), nil
	case model.BulkDeleteMembers:
		member, err := s.deleteMember(ctx, tx, id)
		if err != nil {
			return model.AuditEntry{}, err
		}
		return memberDeleted(model.ActionBulkDelete, member, batchID), nil
	case model.BulkReturnLoans:
		loan, err := tx.GetLoan(ctx, id)
		if err != nil {
			return model.AuditEntry{}, err
		}
		r, err := s.closeLoan(ctx, tx, loan, 0, nil, now)
		if err != nil {
			return model.AuditEntry{}, err
		}
		return returnEntry(model.ActionBulkReturn, r, batchID), nil
	}
	return model.AuditEntry{}, errors.Wrapf(errs.ErrUnknownBulkAction, "action %q", action)
}
