package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/internal/model"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
	"github.com/smabibs/SiPerpus/pkg/metrics"
)

const defaultTimeout = 5 * time.Second

// Publisher forwards stored entries to an external sink.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Recorder appends audit entries after the business transaction has committed.
// It never reports failure to the caller: errors are logged and counted.
type Recorder struct {
	store     repository.AuditStore
	publisher Publisher
	metrics   *metrics.Circulation
	timeout   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Recorder)

func WithPublisher(p Publisher) Option {
	return func(r *Recorder) {
		r.publisher = p
	}
}

func WithMetrics(m *metrics.Circulation) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func NewRecorder(store repository.AuditStore, log *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		timeout: defaultTimeout,
		now:     time.Now,
		log:     log.Named("audit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores entry on a context detached from ctx's cancellation.
func (r *Recorder) Record(ctx context.Context, entry model.AuditEntry) {
	defer func() {
		if p := recover(); p != nil {
			r.fail("panic", entry, fmt.Errorf("%v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC().Truncate(time.Second)
	}

	id, err := r.store.InsertAudit(ctx, entry)
	if err != nil {
		r.fail("store", entry, err)
		return
	}
	entry.ID = id

	if r.publisher == nil {
		return
	}
	key := string(entry.EntityType) + ":" + entry.EntityID
	if err := r.publisher.Publish(ctx, key, entry); err != nil {
		r.fail("publish", entry, err)
	}
}

func (r *Recorder) fail(stage string, entry model.AuditEntry, err error) {
	r.metrics.IncAuditFailure(stage)
	r.log.Warn("audit entry dropped",
		zap.String("stage", stage),
		zap.String("action", string(entry.Action)),
		zap.String("entity_type", string(entry.EntityType)),
		zap.String("entity_id", entry.EntityID),
		zap.Error(err),
	)
}
