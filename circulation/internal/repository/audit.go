package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
)

func (s *store) InsertAudit(ctx context.Context, e model.AuditEntry) (int64, error) {
	b := s.qb.Insert(auditTableName).
		Columns("action", "entity_type", "entity_id", "entity_name", "details", "created_at").
		Values(e.Action, e.EntityType, e.EntityID, e.EntityName, e.Details, e.CreatedAt)
	return s.insert(ctx, b, "InsertAudit")
}

// likeEscaper makes the search term match literally; LOWER on both sides keeps
// SQLite and PostgreSQL equally case-insensitive.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func auditFilter(b sq.SelectBuilder, f model.AuditFilter) sq.SelectBuilder {
	if f.EntityType != "" {
		b = b.Where(sq.Eq{"entity_type": f.EntityType})
	}
	if f.Action != "" {
		b = b.Where(sq.Eq{"action": f.Action})
	}
	if f.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		b = b.Where(sq.Or{
			sq.Expr(`LOWER(entity_name) LIKE ? ESCAPE '\'`, like),
			sq.Expr(`LOWER(details) LIKE ? ESCAPE '\'`, like),
			sq.Expr(`LOWER(entity_id) LIKE ? ESCAPE '\'`, like),
		})
	}
	return b
}

func (s *store) ListAudit(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, int, error) {
	total, err := s.count(ctx, auditFilter(s.qb.Select("COUNT(*)").From(auditTableName), f), "ListAudit.count")
	if err != nil {
		return nil, 0, err
	}

	b := s.qb.Select("id", "action", "entity_type", "entity_id", "entity_name", "details", "created_at").
		From(auditTableName).
		OrderBy("created_at DESC", "id DESC")
	b = page(auditFilter(b, f), f.PageQuery)

	items := make([]model.AuditEntry, 0)
	if err := s.selectAll(ctx, &items, b, "ListAudit"); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
