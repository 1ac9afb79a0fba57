// Package confirm обрабатывает переход по ссылке подтверждения подписки.
package confirm

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
)

// Enqueuer ставит задачу в очередь и возвращает её идентификатор.
type Enqueuer interface {
	Enqueue(name string, args any) (string, error)
}

func New(log *slog.Logger, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.confirm.New"

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

		taskID, err := queue.Enqueue(reconcile.TaskConfirmUser, reconcile.ConfirmArgs{Token: token})
		if err != nil {
			log.Error("failed to enqueue confirm task", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}
		log.Info("confirm accepted", slog.String("task_id", taskID))

		render.JSON(w, r, response.OK())
	}
}
