// Package basket предоставляет маршруты HTTP API сервиса подписок.
package basket

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/newsletter-basket/internal/config"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/accountinfo"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/confirm"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/newsletteradmin"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/newsletterlist"
	recoverhandler "github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/recover"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/smssubscribe"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/subscribe"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/taskadmin"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/unsubscribe"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/handlers/user"
	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/mware"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
	"github.com/magabrotheeeer/newsletter-basket/internal/storage/repository"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(ctx context.Context, r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage, engine *reconcile.Engine, queue *tasks.Runner) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Публичные конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(mware.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
			r.Get("/newsletters", newsletterlist.New(ctx, logger, db))
			r.Post("/subscribe", subscribe.New(ctx, logger, db, queue))
			r.Post("/unsubscribe/{token}", unsubscribe.New(logger, queue))
			r.Get("/users/{token}", user.New(ctx, logger, engine))
			r.Post("/users/{token}", user.NewSet(logger, queue))
			r.Post("/confirm/{token}", confirm.New(logger, queue))
			r.Post("/recover", recoverhandler.New(logger, queue))
			r.Post("/subscribe_sms", smssubscribe.New(logger, queue))
		})

		// Служебные маршруты, закрытые API-ключом: каталог рассылок,
		// синхронизация внешних аккаунтов и журнал отказавших задач
		r.Group(func(r chi.Router) {
			r.Use(mware.APIKeyMiddleware(db, logger))
			r.Post("/newsletters", newsletteradmin.NewCreate(ctx, logger, db))
			r.Put("/newsletters/{slug}", newsletteradmin.NewUpdate(ctx, logger, db))
			r.Delete("/newsletters/{slug}", newsletteradmin.NewDelete(ctx, logger, db))
			r.Post("/users/account", accountinfo.New(logger, queue))
			r.Get("/failed_tasks", taskadmin.NewList(ctx, logger, db))
			r.Post("/failed_tasks/{id}/replay", taskadmin.NewReplay(ctx, logger, queue))
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
