// Package unsubscribe обрабатывает отписку по токену подписчика.
package unsubscribe

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
)

// Request — тело запроса отписки. Reason передаётся в ESP отдельной задачей.
type Request struct {
	Newsletters string `json:"newsletters" validate:"required"`
	Reason      string `json:"reason,omitempty"`
}

// Enqueuer ставит задачу в очередь и возвращает её идентификатор.
type Enqueuer interface {
	Enqueue(name string, args any) (string, error)
}

func New(log *slog.Logger, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.unsubscribe.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")
		if token == "" {
			log.Error("missing token in url")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("missing token"))

			return
		}

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

		taskID, err := queue.Enqueue(reconcile.TaskUpdateUser, models.UpdateRequest{
			Token:       token,
			Action:      models.ActionUnsubscribe,
			Newsletters: slugs,
		})
		if err != nil {
			log.Error("failed to enqueue update task", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}

		if req.Reason != "" {
			if _, err := queue.Enqueue(reconcile.TaskUpdateCustomUnsub, reconcile.CustomUnsubArgs{
				Token:  token,
				Reason: req.Reason,
			}); err != nil {
				// Причина отписки вторична, сама отписка уже в очереди.
				log.Warn("failed to enqueue unsub reason task", sl.Err(err))
			}
		}
		log.Info("unsubscribe accepted", slog.String("task_id", taskID))

		render.JSON(w, r, response.OK())
	}
}
