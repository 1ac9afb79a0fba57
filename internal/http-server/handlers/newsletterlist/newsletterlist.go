// Package newsletterlist отдаёт публичный каталог рассылок.
package newsletterlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/newsletter-basket/internal/http-server/response"
	"github.com/magabrotheeeer/newsletter-basket/internal/lib/sl"
	"github.com/magabrotheeeer/newsletter-basket/internal/models"
)

// Lister возвращает определения рассылок из хранилища конфигурации.
type Lister interface {
	ListNewsletters(ctx context.Context) ([]*models.Newsletter, error)
}

// Item — описание рассылки в публичном каталоге.
type Item struct {
	Slug                string   `json:"slug"`
	Title               string   `json:"title"`
	Description         string   `json:"description,omitempty"`
	Languages           []string `json:"languages"`
	Active              bool     `json:"active"`
	RequiresDoubleOptin bool     `json:"requires_double_optin"`
	Order               int      `json:"order"`
}

func New(ctx context.Context, log *slog.Logger, lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.newsletterlist.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		defs, err := lister.ListNewsletters(ctx)
		if err != nil {
			log.Error("failed to list newsletters", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))

			return
		}

		items := make([]Item, 0, len(defs))
		for _, n := range defs {
			// Скрытые рассылки доступны по прямому слагу, но в каталог не попадают.
			if !n.Show {
				continue
			}
			items = append(items, Item{
				Slug:                n.Slug,
				Title:               n.Title,
				Description:         n.Description,
				Languages:           n.LanguageList(),
				Active:              n.Active,
				RequiresDoubleOptin: n.RequiresDoubleOptin,
				Order:               n.Order,
			})
		}

		render.JSON(w, r, response.StatusOKWithData(items))
	}
}
