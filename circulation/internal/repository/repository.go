package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/pkg/database"
)

type TitleStore interface {
	GetTitle(ctx context.Context, id int64) (model.Title, error)
	GetTitleByISBN(ctx context.Context, isbn string) (model.Title, error)
	CreateTitle(ctx context.Context, title model.Title) (int64, error)
	DecrementAvailable(ctx context.Context, titleID int64, qty int, now time.Time) error
	IncrementAvailable(ctx context.Context, titleID int64, qty int, now time.Time) error
	ResizeTitle(ctx context.Context, titleID int64, newTotal int, now time.Time) (model.Title, error)
	DeleteTitle(ctx context.Context, id int64) error
	InventoryTotals(ctx context.Context) (model.InventoryTotals, error)
}

type MemberStore interface {
	GetMember(ctx context.Context, id int64) (model.Member, error)
	GetMemberByCode(ctx context.Context, code string) (model.Member, error)
	CreateMember(ctx context.Context, member model.Member) (int64, error)
	SetMemberStatus(ctx context.Context, id int64, status model.MemberStatus) error
	DeleteMember(ctx context.Context, id int64) error
	CountActiveMembers(ctx context.Context) (int, error)
}

type LoanStore interface {
	GetLoan(ctx context.Context, id int64) (model.Loan, error)
	HasOpenLoan(ctx context.Context, titleID, memberID int64) (bool, error)
	// OldestOpenLoan narrows to memberID when it is non-zero.
	OldestOpenLoan(ctx context.Context, titleID, memberID int64) (model.Loan, error)
	CountOpenLoansByMember(ctx context.Context, memberID int64) (int, error)
	CountOpenLoansByTitle(ctx context.Context, titleID int64) (int, error)
	InsertLoan(ctx context.Context, loan model.Loan) (int64, error)
	CloseLoan(ctx context.Context, id int64, returnedAt time.Time, fine int64, notes *string) error
	ListLoans(ctx context.Context, filter model.LoanFilter, now time.Time) ([]model.LoanView, int, error)
	LoanTotals(ctx context.Context, now time.Time) (model.LoanTotals, error)
}

type ReservationStore interface {
	GetReservation(ctx context.Context, id int64) (model.Reservation, error)
	HasActiveReservation(ctx context.Context, titleID, memberID int64) (bool, error)
	InsertReservation(ctx context.Context, r model.Reservation) (int64, error)
	SetReservationStatus(ctx context.Context, id int64, status model.ReservationStatus) error
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.ReservationView, int, error)
	CountActiveReservations(ctx context.Context) (int, error)
}

type AuditStore interface {
	InsertAudit(ctx context.Context, entry model.AuditEntry) (int64, error)
	ListAudit(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, int, error)
}

type Store interface {
	TitleStore
	MemberStore
	LoanStore
	ReservationStore
	AuditStore
}

// Tx is a Store bound to one open transaction.
type Tx interface {
	Store
	// Savepoint runs fn inside a savepoint; an error from fn rolls back only fn's writes.
	Savepoint(ctx context.Context, fn func() error) error
}

type Repository interface {
	Store
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

const (
	titlesTableName       = `titles`
	membersTableName      = `members`
	loansTableName        = `loans`
	reservationsTableName = `reservations`
	auditTableName        = `audit_log`
)

type store struct {
	q       sqlx.ExtContext
	qb      sq.StatementBuilderType
	dialect database.Dialect
	inTx    bool
	log     *zap.Logger
}

type repository struct {
	*store
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB, dialect database.Dialect, log *zap.Logger) *repository {
	return &repository{
		store: &store{
			q:       db,
			qb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder()),
			dialect: dialect,
			log:     log.Named("repo"),
		},
		db: db,
	}
}

func (r *repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(classify(err), "begin tx")
	}
	t := &tx{
		store: &store{
			q:       sqlTx,
			qb:      r.qb,
			dialect: r.dialect,
			inTx:    true,
			log:     r.log,
		},
		sqlTx: sqlTx,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.log.Warn("rollback", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(classify(err), "commit")
	}
	return nil
}

type tx struct {
	*store
	sqlTx *sqlx.Tx
}

const savepointName = "bulk_item"

func (t *tx) Savepoint(ctx context.Context, fn func() error) error {
	if _, err := t.sqlTx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		return errors.Wrap(classify(err), "savepoint")
	}
	if err := fn(); err != nil {
		if _, rbErr := t.sqlTx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rbErr != nil {
			return errors.Wrap(classify(rbErr), "rollback to savepoint")
		}
		if _, relErr := t.sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); relErr != nil {
			return errors.Wrap(classify(relErr), "release savepoint")
		}
		return err
	}
	if _, err := t.sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return errors.Wrap(classify(err), "release savepoint")
	}
	return nil
}

// forUpdate locks the selected rows on PostgreSQL. SQLite write transactions
// already hold the database lock from BEGIN IMMEDIATE.
func (s *store) forUpdate(b sq.SelectBuilder) sq.SelectBuilder {
	if s.inTx && s.dialect == database.Postgres {
		return b.Suffix("FOR UPDATE")
	}
	return b
}

func (s *store) get(ctx context.Context, dest any, b sq.Sqlizer, op string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := sqlx.GetContext(ctx, s.q, dest, query, args...); err != nil {
		s.log.Debug(op, zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return classify(err)
	}
	return nil
}

func (s *store) selectAll(ctx context.Context, dest any, b sq.Sqlizer, op string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := sqlx.SelectContext(ctx, s.q, dest, query, args...); err != nil {
		s.log.Debug(op, zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return errors.Wrap(classify(err), op)
	}
	return nil
}

// exec returns the number of affected rows.
func (s *store) exec(ctx context.Context, b sq.Sqlizer, op string) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Debug(op, zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return 0, errors.Wrap(classify(err), op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return n, nil
}

func (s *store) insert(ctx context.Context, b sq.InsertBuilder, op string) (int64, error) {
	var id int64
	if err := s.get(ctx, &id, b.Suffix("RETURNING id"), op); err != nil {
		return 0, errors.Wrap(err, op)
	}
	return id, nil
}

func (s *store) count(ctx context.Context, b sq.SelectBuilder, op string) (int, error) {
	var n int
	if err := s.get(ctx, &n, b, op); err != nil {
		return 0, errors.Wrap(err, op)
	}
	return n, nil
}

func (s *store) exists(ctx context.Context, b sq.SelectBuilder, op string) (bool, error) {
	n, err := s.count(ctx, b, op)
	return n > 0, err
}

func page(b sq.SelectBuilder, p model.PageQuery) sq.SelectBuilder {
	p = p.Normalize()
	return b.Limit(uint64(p.Size)).Offset(uint64(p.Offset()))
}
