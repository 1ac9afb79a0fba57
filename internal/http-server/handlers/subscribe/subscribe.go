// Package subscribe обрабатывает запрос на подписку: проверяет вход,
// выдаёт подписчику токен и ставит задачу сверки в очередь.
package subscribe

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
)

// Request — тело запроса подписки. Newsletters — слаги через запятую.
type Request struct {
	Email       string `json:"email" validate:"required,email"`
	Newsletters string `json:"newsletters" validate:"required"`
	Lang        string `json:"lang,omitempty"`
	Country     string `json:"country,omitempty"`
	Format      string `json:"format,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Optin       bool   `json:"optin"`
}

// Enqueuer ставит задачу в очередь и возвращает её идентификатор.
type Enqueuer interface {
	Enqueue(name string, args any) (string, error)
}

// SubscriberProvider выдаёт подписчику локальную запись с токеном.
type SubscriberProvider interface {
	GetOrCreateSubscriber(ctx context.Context, email string) (*models.Subscriber, bool, error)
}

func New(ctx context.Context, log *slog.Logger, subscribers SubscriberProvider, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.subscribe.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))

			return
		}

		slugs := models.ParseNewsletterList(req.Newsletters)
		if len(slugs) == 0 {
			log.Error("no newsletters in request")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("no newsletters requested"))

			return
		}

		sub, created, err := subscribers.GetOrCreateSubscriber(ctx, req.Email)
		if err != nil {
			log.Error("failed to get or create subscriber", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}
		if created {
			log.Info("issued new subscriber token")
		}

		taskID, err := queue.Enqueue(reconcile.TaskUpdateUser, models.UpdateRequest{
			Email:          req.Email,
			Token:          sub.Token,
			Action:         models.ActionSubscribe,
			Newsletters:    slugs,
			Lang:           req.Lang,
			Country:        req.Country,
			Format:         req.Format,
			SourceURL:      req.SourceURL,
			Optin:          req.Optin,
			TriggerWelcome: true,
		})
		if err != nil {
			log.Error("failed to enqueue update task", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}
		log.Info("subscribe accepted", slog.String("task_id", taskID))

		render.JSON(w, r, response.OKWithToken(sub.Token))
	}
}
