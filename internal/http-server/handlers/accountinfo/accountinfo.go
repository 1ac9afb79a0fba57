// Package accountinfo принимает синхронизацию внешнего аккаунта
// с записью подписчика. Маршрут закрыт API-ключом: запросы приходят
// от доверенного сервиса аккаунтов, а не от пользователя.
package accountinfo

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/reconcile"
)

// Request — тело запроса синхронизации аккаунта.
type Request struct {
	Email     string `json:"email" validate:"required,email"`
	AccountID string `json:"account_id" validate:"required"`
	Lang      string `json:"lang,omitempty"`
}

// Enqueuer ставит задачу в очередь и возвращает её идентификатор.
type Enqueuer interface {
	Enqueue(name string, args any) (string, error)
}

func New(log *slog.Logger, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.accountinfo.New"

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

		taskID, err := queue.Enqueue(reconcile.TaskUpdateAccountInfo,
			reconcile.AccountInfoArgs{
				Email:     req.Email,
				AccountID: req.AccountID,
				Lang:      req.Lang,
			})
		if err != nil {
			log.Error("failed to enqueue account info task", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}
		log.Info("account info accepted", slog.String("task_id", taskID))

		render.JSON(w, r, response.OK())
	}
}
