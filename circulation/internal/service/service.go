package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/errs"
	"github.com/smabibs/SiPerpus/circulation/internal/fine"
	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
	"github.com/smabibs/SiPerpus/pkg/metrics"
)

type Config struct {
	LoanDays        int   `envconfig:"LOAN_DAYS" default:"7"`
	ReservationDays int   `envconfig:"RESERVATION_DAYS" default:"7"`
	FinePerDay      int64 `envconfig:"FINE_PER_DAY" default:"1000"`
	// MaxOpenLoans caps open loans per member; zero disables the check.
	MaxOpenLoans int `envconfig:"MAX_OPEN_LOANS" default:"0"`
}

func (c Config) withDefaults() Config {
	if c.LoanDays < 1 {
		c.LoanDays = 7
	}
	if c.ReservationDays < 1 {
		c.ReservationDays = 7
	}
	return c
}

// Auditor receives entries after commit. Implementations must not block on
// or report delivery failures.
type Auditor interface {
	Record(ctx context.Context, entry model.AuditEntry)
}

type Service struct {
	repo    repository.Repository
	auditor Auditor
	fines   fine.Policy
	cfg     Config
	now     func() time.Time
	metrics *metrics.Circulation
	log     *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Circulation) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(repo repository.Repository, auditor Auditor, log *zap.Logger, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		repo:    repo,
		auditor: auditor,
		fines:   fine.NewPolicy(cfg.FinePerDay),
		cfg:     cfg,
		now:     time.Now,
		log:     log.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock is the current time as stored: UTC with second precision.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// inTx runs fn in one transaction and retries once when the store reports a
// write conflict. fn must not have effects outside the transaction.
func (s *Service) inTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	err := s.repo.InTx(ctx, fn)
	if errs.Is(err, errs.KindConflict) && ctx.Err() == nil {
		s.log.Debug("retrying after conflict", zap.Error(err))
		err = s.repo.InTx(ctx, fn)
	}
	return err
}

// observe records the outcome of op started at begin.
func (s *Service) observe(op string, begin time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errs.KindOf(err))
		if errs.KindOf(err) == errs.KindInternal {
			s.log.Error(op, zap.Error(err))
		}
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(begin))
}

func (s *Service) record(ctx context.Context, entries ...model.AuditEntry) {
	if s.auditor == nil {
		return
	}
	for _, e := range entries {
		s.auditor.Record(ctx, e)
	}
}
