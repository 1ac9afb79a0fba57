// Package worker собирает воркер задач: потребителя очереди, ядро сверки
// и сервер метрик.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/newsletter-basket/internal/cache"
	"github.com/magabrotheeeer/newsletter-basket/internal/config"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/newsletter-basket/internal/migrations"
	"github.com/magabrotheeeer/newsletter-basket/internal/newsletters"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
	"github.com/magabrotheeeer/newsletter-basket/internal/storage/repository"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
	"github.com/magabrotheeeer/newsletter-basket/internal/vendor"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	runner        *tasks.Runner
	metricsServer *http.Server
	db            *repository.Storage
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitConnectionString, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Tasks.RetryDelay)
	if err != nil {
		conn.Close()
		return nil, err
	}

	registry := newsletters.NewRegistry(db)
	db.OnNewsletterChange(registry.Invalidate)

	gateway := vendor.NewClient(cfg.Vendor)
	messenger := reconcile.NewMessenger(gateway, cacheRedis, cfg.Messages.DenyListTTL, logger)
	engine := reconcile.NewEngine(gateway, registry, db, messenger, cfg.Vendor, cfg.Messages, logger)

	runner := tasks.NewRunner(db, rabbitmq.NewPublisher(ch), tasks.Policy{
		MaxAttempts: cfg.Tasks.MaxAttempts,
		RetryDelay:  cfg.Tasks.RetryDelay,
	}, logger)
	reconcile.RegisterTasks(runner, engine)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())

	return &App{
		conn:   conn,
		ch:     ch,
		runner: runner,
		metricsServer: &http.Server{
			Addr:    cfg.AddressHTTP,
			Handler: router,
		},
		db:     db,
		logger: logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.WorkQueue, a.runner.HandleDelivery(ctx)); err != nil {
		a.logger.Error("failed to start task consumer", slog.Any("err", err))
		return err
	}
	a.logger.Info("task consumer started", slog.String("queue", rabbitmq.WorkQueue))

	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metricsServer.Addr))
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	a.logger.Info("worker shutting down gracefully")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shut down metrics server", slog.Any("err", err))
	}
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", slog.Any("err", err))
	}
	return nil
}
