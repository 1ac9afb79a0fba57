// Package user отдаёт текущее состояние подписчика по токену
// и принимает полную замену его набора подписок.
package user

import (
	"context"
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

// Lookuper читает состояние пользователя на стороне ESP.
type Lookuper interface {
	LookupUser(ctx context.Context, email, token string) (*models.UserData, error)
}

// Enqueuer ставит задачу в очередь и возвращает её идентификатор.
type Enqueuer interface {
	Enqueue(name string, args any) (string, error)
}

// View — состояние подписчика, отдаваемое клиенту.
type View struct {
	Email       string   `json:"email"`
	Lang        string   `json:"lang,omitempty"`
	Country     string   `json:"country,omitempty"`
	Format      string   `json:"format"`
	Newsletters []string `json:"newsletters"`
	Confirmed   bool     `json:"confirmed"`
	Pending     bool     `json:"pending"`
}

// SetRequest — тело запроса полной замены набора подписок.
type SetRequest struct {
	Newsletters string `json:"newsletters" validate:"required"`
	Lang        string `json:"lang,omitempty"`
	Format      string `json:"format,omitempty"`
}

// New возвращает обработчик чтения состояния подписчика.
func New(ctx context.Context, log *slog.Logger, lookuper Lookuper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.New"

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

		user, err := lookuper.LookupUser(ctx, "", token)
		if err != nil {
			log.Error("failed to fetch user state", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("failed to fetch user state"))

			return
		}
		if user == nil {
			log.Info("user not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))

			return
		}

		render.JSON(w, r, response.StatusOKWithData(View{
			Email:       user.Email,
			Lang:        user.Lang,
			Country:     user.Country,
			Format:      user.Format,
			Newsletters: user.Newsletters,
			Confirmed:   user.Confirmed,
			Pending:     user.Pending,
		}))
	}
}

// NewSet возвращает обработчик полной замены набора подписок.
func NewSet(log *slog.Logger, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.NewSet"

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

		var req SetRequest
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

		// Пустой целевой набор означал бы полную отписку; для неё есть
		// явный маршрут отписки, здесь это считается ошибкой клиента.
		slugs := models.ParseNewsletterList(req.Newsletters)
		if len(slugs) == 0 {
			log.Error("no newsletters in request")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("no newsletters requested"))

			return
		}

		taskID, err := queue.Enqueue(reconcile.TaskUpdateUser, models.UpdateRequest{
			Token:       token,
			Action:      models.ActionSet,
			Newsletters: slugs,
			Lang:        req.Lang,
			Format:      req.Format,
		})
		if err != nil {
			log.Error("failed to enqueue update task", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}
		log.Info("set accepted", slog.String("task_id", taskID))

		render.JSON(w, r, response.OK())
	}
}
