// Package newsletteradmin содержит служебные обработчики управления
// каталогом рассылок. Маршруты закрыты API-ключом; каждая запись
// синхронно сбрасывает кеш реестра через хук хранилища.
package newsletteradmin

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
)

// Storer управляет определениями рассылок в хранилище конфигурации.
type Storer interface {
	CreateNewsletter(ctx context.Context, n models.Newsletter) (int, error)
	UpdateNewsletter(ctx context.Context, n models.Newsletter) (int, error)
	DeleteNewsletter(ctx context.Context, slug string) (int, error)
}

func fromDummy(d models.DummyNewsletter) models.Newsletter {
	return models.Newsletter{
		Slug:                d.Slug,
		Title:               d.Title,
		Description:         d.Description,
		Show:                d.Show,
		Active:              d.Active,
		Welcome:             d.Welcome,
		VendorID:            d.VendorID,
		Languages:           d.Languages,
		RequiresDoubleOptin: d.RequiresDoubleOptin,
		Order:               d.Order,
		ConfirmMessage:      d.ConfirmMessage,
	}
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, urlSlug string) (models.DummyNewsletter, bool) {
	var dummy models.DummyNewsletter
	if err := render.DecodeJSON(r.Body, &dummy); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))

		return dummy, false
	}
	// Слаг из URL главнее слага из тела: маршрут определяет адресата.
	if urlSlug != "" {
		dummy.Slug = urlSlug
	}
	if err := validator.New().Struct(dummy); err != nil {
		validateErr := err.(validator.ValidationErrors)
		log.Error("invalid request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(validateErr))

		return dummy, false
	}
	return dummy, true
}

// NewCreate возвращает обработчик добавления рассылки.
func NewCreate(ctx context.Context, log *slog.Logger, store Storer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.newsletteradmin.NewCreate"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		dummy, ok := decode(w, r, log, "")
		if !ok {
			return
		}

		id, err := store.CreateNewsletter(ctx, fromDummy(dummy))
		if err != nil {
			log.Error("failed to create newsletter", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to save"))

			return
		}
		log.Info("newsletter created", slog.String("slug", dummy.Slug), slog.Int("id", id))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"id": id}))
	}
}

// NewUpdate возвращает обработчик изменения рассылки по слагу.
func NewUpdate(ctx context.Context, log *slog.Logger, store Storer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.newsletteradmin.NewUpdate"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		dummy, ok := decode(w, r, log, chi.URLParam(r, "slug"))
		if !ok {
			return
		}

		count, err := store.UpdateNewsletter(ctx, fromDummy(dummy))
		if err != nil {
			log.Error("failed to update newsletter", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to save"))

			return
		}
		if count == 0 {
			log.Info("newsletter not found", slog.String("slug", dummy.Slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("newsletter not found"))

			return
		}
		log.Info("newsletter updated", slog.String("slug", dummy.Slug))

		render.JSON(w, r, response.OK())
	}
}

// NewDelete возвращает обработчик удаления рассылки по слагу.
func NewDelete(ctx context.Context, log *slog.Logger, store Storer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.newsletteradmin.NewDelete"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slug := chi.URLParam(r, "slug")
		count, err := store.DeleteNewsletter(ctx, slug)
		if err != nil {
			log.Error("failed to delete newsletter", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to delete"))

			return
		}
		if count == 0 {
			log.Info("newsletter not found", slog.String("slug", slug))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("newsletter not found"))

			return
		}
		log.Info("newsletter deleted", slog.String("slug", slug))

		render.JSON(w, r, response.OK())
	}
}
