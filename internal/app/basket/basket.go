// Package basket собирает HTTP API сервиса подписок: хранилище
// конфигурации, очередь задач, реестр рассылок и маршруты.
package basket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
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
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
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
	// Обработчики нужны и здесь: повторный запуск отказавших задач
	// выполняется прямо в процессе API.
	reconcile.RegisterTasks(runner, engine)

	router := chi.NewRouter()
	RegisterRoutes(ctx, router, logger, cfg, db, engine, runner)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.ch.Close()
		a.conn.Close()
		a.db.DB.Close()
		return err
	}
}
