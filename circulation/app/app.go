package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/smabibs/SiPerpus/circulation/config"
	"github.com/smabibs/SiPerpus/circulation/internal/audit"
	"github.com/smabibs/SiPerpus/circulation/internal/handler"
	"github.com/smabibs/SiPerpus/circulation/internal/repository"
	"github.com/smabibs/SiPerpus/circulation/internal/server"
	"github.com/smabibs/SiPerpus/circulation/internal/service"
	"github.com/smabibs/SiPerpus/circulation/migrations"
	cb "github.com/smabibs/SiPerpus/pkg/circuit_breaker"
	"github.com/smabibs/SiPerpus/pkg/database"
	"github.com/smabibs/SiPerpus/pkg/kafka"
	"github.com/smabibs/SiPerpus/pkg/logger"
	"github.com/smabibs/SiPerpus/pkg/metrics"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "circulation")
	defer log.Sync() //nolint:errcheck

	db, err := database.NewDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	repo := repository.NewRepository(db, cfg.Database.Dialect(), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCirculation(reg)

	auditOpts := []audit.Option{
		audit.WithMetrics(m),
		audit.WithTimeout(cfg.AuditTimeout),
	}
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			_ = db.Close()
			return errors.Wrap(err, "kafka.NewProducer")
		}
		publisher = kafka.NewPublisher(producer, cfg.Kafka.AuditTopic, cb.New(cfg.Breaker))
		auditOpts = append(auditOpts, audit.WithPublisher(publisher))
		log.Info("audit forwarding enabled", zap.String("topic", cfg.Kafka.AuditTopic))
	}
	recorder := audit.NewRecorder(repo, log, auditOpts...)

	svc := service.NewService(repo, recorder, log, cfg.Circulation, service.WithMetrics(m))

	h := handler.New(svc, svc, log,
		handler.WithSession(cfg.Session),
		handler.WithAllowOrigins(cfg.Server.AllowOrigins...),
		handler.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("db", string(cfg.Database.Dialect())))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err = srv.Stop(closeCtx)
	if publisher != nil {
		err = multierr.Append(err, publisher.Close())
	}
	err = multierr.Append(err, db.Close())
	if err != nil {
		log.Error("shutdown", zap.Error(err))
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// Migrate applies the embedded migrations and exits.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDB(context.Background(), &cfg.Database, nil)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()
	return database.Migrate(db, cfg.Database.Dialect(), migrations.MigrationFiles)
}
