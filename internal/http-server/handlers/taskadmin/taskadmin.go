// Package taskadmin содержит служебные обработчики журнала отказавших
// задач: просмотр записей и повторный запуск по идентификатору.
// Маршруты закрыты API-ключом.
package taskadmin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

const defaultLimit = 50

// Lister читает записи об окончательных отказах, новые первыми.
type Lister interface {
	ListFailedTasks(ctx context.Context, limit, offset int) ([]*models.FailedTask, error)
}

// Replayer повторно выполняет записанный отказ.
type Replayer interface {
	Replay(ctx context.Context, id int) error
}

// Item — запись журнала отказов в ответе.
type Item struct {
	ID     int             `json:"id"`
	When   time.Time       `json:"occurred_at"`
	TaskID string          `json:"task_id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
	Exc    string          `json:"exc"`
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// NewList возвращает обработчик списка отказавших задач.
func NewList(ctx context.Context, log *slog.Logger, store Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.taskadmin.NewList"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		limit := queryInt(r, "limit", defaultLimit)
		offset := queryInt(r, "offset", 0)

		records, err := store.ListFailedTasks(ctx, limit, offset)
		if err != nil {
			log.Error("failed to list failed tasks", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}

		items := make([]Item, 0, len(records))
		for _, rec := range records {
			items = append(items, Item{
				ID:     rec.ID,
				When:   rec.When,
				TaskID: rec.TaskID,
				Name:   rec.Name,
				Args:   rec.Args,
				Exc:    rec.Exc,
			})
		}

		render.JSON(w, r, response.StatusOKWithData(items))
	}
}

// NewReplay возвращает обработчик повторного запуска отказавшей задачи.
// Запись удаляется из журнала только после успешного выполнения.
func NewReplay(ctx context.Context, log *slog.Logger, runner Replayer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.taskadmin.NewReplay"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid task id"))

			return
		}

		if err := runner.Replay(ctx, id); err != nil {
			log.Error("failed to replay task", slog.Int("id", id), sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to replay task"))

			return
		}
		log.Info("failed task replayed", slog.Int("id", id))

		render.JSON(w, r, response.OK())
	}
}
